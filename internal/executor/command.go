package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/toolbridge/internal/common"
	"github.com/bobmcallan/toolbridge/internal/config"
	"github.com/bobmcallan/toolbridge/internal/schema"
	"github.com/bobmcallan/toolbridge/internal/template"
)

// waitDelay bounds Wait after the context kills the child, in case the child
// leaked its output pipes to a grandchild.
const waitDelay = 5 * time.Second

// Command executes a command tool: renders args and stdin against the input,
// runs the executable under the tool's deadline, and gates parsed stdout
// through the output schema. The executable path itself is a literal from
// configuration, never rendered.
type Command struct {
	name  string
	path  string
	args  []*template.Template
	stdin *template.Template

	input   *schema.Schema
	output  *schema.Schema
	timeout time.Duration
	logger  *common.Logger
}

// NewCommand compiles the templates of a command tool definition.
func NewCommand(def *config.ToolDefinition, eng *template.Engine, in, out *schema.Schema,
	timeout time.Duration, logger *common.Logger) (*Command, error) {

	meta := def.Command
	args := make([]*template.Template, 0, len(meta.Args))
	for i, arg := range meta.Args {
		tmpl, err := eng.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("tool %q: arg %d: %w", def.Name, i, err)
		}
		args = append(args, tmpl)
	}

	var stdin *template.Template
	if meta.Stdin != "" {
		tmpl, err := eng.Parse(meta.Stdin)
		if err != nil {
			return nil, fmt.Errorf("tool %q: stdin: %w", def.Name, err)
		}
		stdin = tmpl
	}

	return &Command{
		name:    def.Name,
		path:    meta.Command,
		args:    args,
		stdin:   stdin,
		input:   in,
		output:  out,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Execute implements Executor. The child process is owned by this call and
// is guaranteed terminated — on success, failure or timeout — before the
// result is returned.
func (e *Command) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	log := e.logger.WithCorrelationId(uuid.NewString())

	if ierr := checkInput(e.input, input); ierr != nil {
		return nil, ierr
	}

	args := make([]string, 0, len(e.args))
	for i, tmpl := range e.args {
		rendered, err := tmpl.Render(input)
		if err != nil {
			return nil, renderFailed(fmt.Sprintf("arg %d", i), err)
		}
		args = append(args, rendered)
	}

	var stdin string
	if e.stdin != nil {
		rendered, err := e.stdin.Render(input)
		if err != nil {
			return nil, renderFailed("stdin", err)
		}
		stdin = rendered
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.WaitDelay = waitDelay
	if e.stdin != nil {
		// strings.Reader reaches EOF after the rendered text, so the child
		// observes end-of-input once it has been written.
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().
		Str("tool", e.name).
		Str("command", e.path).
		Int("args", len(args)).
		Msg("spawning tool process")

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn().Str("tool", e.name).Dur("duration", duration).Msg("tool process timed out")
		return nil, timedOut(fmt.Sprintf("command %s exceeded %s", e.path, e.timeout), ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Error().
				Str("tool", e.name).
				Int("exit_code", exitErr.ExitCode()).
				Dur("duration", duration).
				Msg("tool process exited non-zero")
			return nil, &InvocationError{
				Kind:     KindExecution,
				Message:  fmt.Sprintf("command %s exited with code %d: %s", e.path, exitErr.ExitCode(), stderr.String()),
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
				Err:      err,
			}
		}
		log.Error().Err(err).Str("tool", e.name).Msg("tool process failed to run")
		return nil, executionFailed(fmt.Sprintf("run command %s: %v", e.path, err), err)
	}

	log.Debug().
		Str("tool", e.name).
		Dur("duration", duration).
		Int("stdout_bytes", stdout.Len()).
		Msg("tool process finished")

	return finish(stdout.String(), e.output)
}
