package server

import (
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/toolbridge/internal/config"
)

// SSE wraps mcp-go's SSE server with the configured endpoint paths and
// keep-alive interval. It is an http.Handler, so tests mount it on an
// httptest server instead of binding a port.
type SSE struct {
	*mcpserver.SSEServer
	ssePath   string
	postPath  string
	keepAlive time.Duration
}

// NewSSE builds the event-stream transport from its configuration,
// applying the default paths where the config leaves them blank.
func NewSSE(m *mcpserver.MCPServer, cfg *config.SSEConfig) *SSE {
	ssePath := config.DefaultSSEPath
	postPath := config.DefaultPostPath
	if cfg != nil && cfg.SSEPath != "" {
		ssePath = cfg.SSEPath
	}
	if cfg != nil && cfg.PostPath != "" {
		postPath = cfg.PostPath
	}
	keepAlive := cfg.KeepAlive()

	sse := mcpserver.NewSSEServer(m,
		mcpserver.WithSSEEndpoint(ssePath),
		mcpserver.WithMessageEndpoint(postPath),
		mcpserver.WithKeepAliveInterval(keepAlive),
	)

	return &SSE{
		SSEServer: sse,
		ssePath:   ssePath,
		postPath:  postPath,
		keepAlive: keepAlive,
	}
}
