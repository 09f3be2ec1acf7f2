package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/toolbridge/internal/common"
	"github.com/bobmcallan/toolbridge/internal/config"
	"github.com/bobmcallan/toolbridge/internal/schema"
	"github.com/bobmcallan/toolbridge/internal/template"
)

// headerTemplate is one compiled header. Headers are kept sorted by name so
// request construction is deterministic (declaration order carries no
// meaning).
type headerTemplate struct {
	name string
	tmpl *template.Template
}

// HTTP executes an HTTP tool: renders url, headers and body against the
// input, issues the request under the tool's deadline, and gates the parsed
// response through the output schema.
type HTTP struct {
	name    string
	method  string
	url     *template.Template
	headers []headerTemplate
	body    *template.Template

	input   *schema.Schema
	output  *schema.Schema
	timeout time.Duration
	client  *http.Client
	logger  *common.Logger
}

// NewHTTP compiles the templates of an HTTP tool definition. Template errors
// here are configuration errors; the registry surfaces them before serving.
// The client is shared across executors; per-invocation deadlines come from
// the request context, not the client.
func NewHTTP(def *config.ToolDefinition, eng *template.Engine, in, out *schema.Schema,
	timeout time.Duration, client *http.Client, logger *common.Logger) (*HTTP, error) {

	meta := def.HTTP
	urlTmpl, err := eng.Parse(meta.URL)
	if err != nil {
		return nil, fmt.Errorf("tool %q: url: %w", def.Name, err)
	}

	var body *template.Template
	if meta.Body != "" {
		if body, err = eng.Parse(meta.Body); err != nil {
			return nil, fmt.Errorf("tool %q: body: %w", def.Name, err)
		}
	}

	names := make([]string, 0, len(meta.Headers))
	for name := range meta.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	headers := make([]headerTemplate, 0, len(names))
	for _, name := range names {
		tmpl, err := eng.Parse(meta.Headers[name])
		if err != nil {
			return nil, fmt.Errorf("tool %q: header %s: %w", def.Name, name, err)
		}
		headers = append(headers, headerTemplate{name: name, tmpl: tmpl})
	}

	return &HTTP{
		name:    def.Name,
		method:  meta.Method,
		url:     urlTmpl,
		headers: headers,
		body:    body,
		input:   in,
		output:  out,
		timeout: timeout,
		client:  client,
		logger:  logger,
	}, nil
}

// Execute implements Executor. No network traffic happens for invalid input
// or a failed render.
func (e *HTTP) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	log := e.logger.WithCorrelationId(uuid.NewString())

	if ierr := checkInput(e.input, input); ierr != nil {
		return nil, ierr
	}

	url, err := e.url.Render(input)
	if err != nil {
		return nil, renderFailed("url", err)
	}

	var bodyReader io.Reader
	if e.body != nil {
		rendered, err := e.body.Render(input)
		if err != nil {
			return nil, renderFailed("body", err)
		}
		bodyReader = strings.NewReader(rendered)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, e.method, url, bodyReader)
	if err != nil {
		return nil, executionFailed(fmt.Sprintf("build request for %s: %v", url, err), err)
	}
	for _, h := range e.headers {
		value, err := h.tmpl.Render(input)
		if err != nil {
			return nil, renderFailed("header "+h.name, err)
		}
		req.Header.Set(h.name, value)
	}

	log.Debug().
		Str("tool", e.name).
		Str("method", e.method).
		Str("url", url).
		Msg("tool request")

	start := time.Now()
	resp, err := e.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("tool", e.name).Dur("duration", duration).Msg("tool request timed out")
			return nil, timedOut(fmt.Sprintf("request to %s exceeded %s", url, e.timeout), err)
		}
		log.Error().Err(err).Str("tool", e.name).Str("url", url).Msg("tool request failed")
		return nil, executionFailed(fmt.Sprintf("request to %s: %v", url, err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, executionFailed(fmt.Sprintf("read response from %s: %v", url, err), err)
	}

	log.Debug().
		Str("tool", e.name).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("tool response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, executionFailed(
			fmt.Sprintf("request to %s returned %d: %s", url, resp.StatusCode, string(raw)), nil)
	}

	return finish(string(raw), e.output)
}
