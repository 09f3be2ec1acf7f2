// Package server exposes the tool registry over the MCP wire protocol.
// Protocol framing and session bookkeeping are delegated to mcp-go, the same
// division of labor the rest of the system assumes: this package owns the
// mapping between protocol requests and registry/executor semantics, and the
// selection of the serving transport.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/toolbridge/internal/common"
	"github.com/bobmcallan/toolbridge/internal/config"
	"github.com/bobmcallan/toolbridge/internal/executor"
	"github.com/bobmcallan/toolbridge/internal/registry"
)

// shutdownGrace bounds how long an SSE shutdown waits for in-flight requests.
const shutdownGrace = 5 * time.Second

// emptyObjectSchema advertises "any object" for tools that declare no input
// schema; the protocol requires an input schema on every listed tool.
var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// Server binds the registry to an MCP server and serves it over the
// configured transport.
type Server struct {
	cfg    *config.Config
	reg    *registry.Registry
	logger *common.Logger
	mcp    *mcpserver.MCPServer
}

// New builds the protocol server: one MCP tool per registry entry, each
// advertising its declared schemas and routing calls to its bound executor.
func New(cfg *config.Config, reg *registry.Registry, logger *common.Logger) *Server {
	version := cfg.ServerInfo.Version
	if version == "" {
		version = common.GetVersion()
	}

	opts := []mcpserver.ServerOption{
		capabilityOption(cfg.Capabilities),
		mcpserver.WithHooks(listHooks(reg)),
	}
	if cfg.Capabilities != nil && cfg.Capabilities.Logging {
		opts = append(opts, mcpserver.WithLogging())
	}
	if cfg.Instruction != "" {
		opts = append(opts, mcpserver.WithInstructions(cfg.Instruction))
	}

	s := &Server{
		cfg:    cfg,
		reg:    reg,
		logger: logger,
		mcp:    mcpserver.NewMCPServer(cfg.ServerInfo.Name, version, opts...),
	}
	s.registerTools()

	logger.Info().
		Int("tools", reg.Len()).
		Str("transport", string(cfg.Transport.Type)).
		Msg("protocol server initialized")

	return s
}

// MCP exposes the underlying MCP server; tests drive it directly with raw
// protocol messages.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// capabilityOption maps the configured capability override to a server
// option. Without an override the server advertises tool support only.
func capabilityOption(caps *config.CapabilitiesConfig) mcpserver.ServerOption {
	listChanged := true
	if caps != nil && caps.Tools != nil {
		listChanged = caps.Tools.ListChanged
	}
	return mcpserver.WithToolCapabilities(listChanged)
}

// listHooks rewrites tools/list results back into declaration order before
// they are serialized; the SDK lists tools sorted by name, but listings
// must follow the order the configuration declared.
func listHooks(reg *registry.Registry) *mcpserver.Hooks {
	rank := make(map[string]int, reg.Len())
	for i, tool := range reg.List() {
		rank[tool.Def.Name] = i
	}
	hooks := &mcpserver.Hooks{}
	hooks.AddAfterListTools(func(_ context.Context, _ any, _ *mcp.ListToolsRequest, result *mcp.ListToolsResult) {
		sort.SliceStable(result.Tools, func(i, j int) bool {
			return rank[result.Tools[i].Name] < rank[result.Tools[j].Name]
		})
	})
	return hooks
}

func (s *Server) registerTools() {
	for _, tool := range s.reg.List() {
		inputSchema := tool.Input.RawJSON()
		if inputSchema == nil {
			inputSchema = emptyObjectSchema
		}
		mcpTool := mcp.NewToolWithRawSchema(tool.Def.Name, tool.Def.Description, inputSchema)
		if out := tool.Output.RawJSON(); out != nil {
			mcpTool.RawOutputSchema = out
		}
		if ann := tool.Def.Annotations; ann != nil {
			mcpTool.Annotations = mcp.ToolAnnotation{
				Title:           ann.Title,
				ReadOnlyHint:    ann.ReadOnlyHint,
				DestructiveHint: ann.DestructiveHint,
				IdempotentHint:  ann.IdempotentHint,
				OpenWorldHint:   ann.OpenWorldHint,
			}
		}
		s.mcp.AddTool(mcpTool, s.handler(tool))
	}
}

// handler adapts one registry tool to the MCP call contract. Invocation
// failures stay in-band as error results: they fail the single call, never
// the session or the server.
func (s *Server) handler(tool *registry.Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := tool.Exec.Execute(ctx, request.GetArguments())
		if err != nil {
			var ierr *executor.InvocationError
			if errors.As(err, &ierr) {
				s.logger.Warn().
					Str("tool", tool.Def.Name).
					Str("kind", string(ierr.Kind)).
					Msg("tool invocation failed")
				return errorResult(fmt.Sprintf("Error: %v", ierr)), nil
			}
			return nil, err
		}

		result := textResult(resultText(res))
		if tool.Output != nil {
			result.StructuredContent = res.Value
		}
		return result, nil
	}
}

// resultText renders the invocation result for the text content block:
// raw text for textual outputs, compact JSON for structured ones.
func resultText(res *executor.Result) string {
	if s, ok := res.Value.(string); ok {
		return s
	}
	b, err := json.Marshal(res.Value)
	if err != nil {
		return res.Raw
	}
	return string(b)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

// Serve runs the configured transport until ctx is cancelled or the
// transport fails.
func (s *Server) Serve(ctx context.Context) error {
	switch s.cfg.Transport.Type {
	case config.TransportStdio:
		return s.serveStdio(ctx)
	case config.TransportSSE:
		return s.serveSSE(ctx)
	default:
		return fmt.Errorf("unsupported transport %q", s.cfg.Transport.Type)
	}
}

// serveStdio runs the sequential read-dispatch-write loop on the process
// streams. One request completes, executor call included, before the next
// is read.
func (s *Server) serveStdio(ctx context.Context) error {
	s.logger.Info().Msg("serving on stdio")
	stdio := mcpserver.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// serveSSE runs the event-stream transport: GET on the sse path opens a
// session, POSTs on the post path carry requests, responses are pushed on
// the session's stream, idle sessions are kept alive on the configured
// interval.
func (s *Server) serveSSE(ctx context.Context) error {
	sse := NewSSE(s.mcp, s.cfg.Transport.SSE)
	addr := s.cfg.Transport.SSE.Address

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()

	s.logger.Info().
		Str("address", addr).
		Str("sse_path", sse.ssePath).
		Str("post_path", sse.postPath).
		Msg("serving on SSE")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("SSE shutdown incomplete")
		}
		return nil
	case err := <-errCh:
		return err
	}
}
