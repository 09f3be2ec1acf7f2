package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
server_info:
  name: weather-bridge
  version: 1.2.3
server_capabilities:
  tools:
    list_changed: true
  logging: true
instruction: "Use these tools to look things up."
transport_config:
  transport_type: SSE
  sse_config:
    address: "127.0.0.1:8800"
    sse_path: /events
    post_path: /rpc
    keep_alive_duration: 45s
execution:
  command_timeout: 5s
logging:
  level: debug
tools:
  - name: get_weather
    description: Fetch current weather
    tool_type: HTTP
    input_schema:
      type: object
      properties:
        city:
          type: string
      required: [city]
    tool_annotations:
      title: Weather lookup
      read_only_hint: true
      open_world_hint: true
    http_metadata:
      url: "https://api.example.com/weather?q={ input.city | url_encode }"
      method: GET
      headers:
        Accept: application/json
  - name: echo
    description: Echo a message
    tool_type: COMMAND
    timeout: 2s
    command_metadata:
      command: echo
      args: ["{ input.msg }"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerInfo.Name != "weather-bridge" || cfg.ServerInfo.Version != "1.2.3" {
		t.Errorf("server_info = %+v", cfg.ServerInfo)
	}
	if cfg.Transport.Type != TransportSSE {
		t.Errorf("transport = %q", cfg.Transport.Type)
	}
	if cfg.Transport.SSE.SSEPath != "/events" || cfg.Transport.SSE.PostPath != "/rpc" {
		t.Errorf("sse paths = %+v", cfg.Transport.SSE)
	}
	if got := cfg.Transport.SSE.KeepAlive(); got != 45*time.Second {
		t.Errorf("keep alive = %v", got)
	}
	if len(cfg.Tools) != 2 {
		t.Fatalf("tools = %d", len(cfg.Tools))
	}

	weather := cfg.Tools[0]
	if weather.Kind != KindHTTP || weather.HTTP == nil || weather.Command != nil {
		t.Errorf("weather tool shape wrong: %+v", weather)
	}
	if weather.InputSchema["type"] != "object" {
		t.Errorf("input schema not parsed: %v", weather.InputSchema)
	}
	ann := weather.Annotations
	if ann == nil || ann.Title != "Weather lookup" {
		t.Fatalf("annotations not parsed: %+v", ann)
	}
	if ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint || ann.OpenWorldHint == nil || !*ann.OpenWorldHint {
		t.Errorf("annotation hints not parsed: %+v", ann)
	}
	if ann.DestructiveHint != nil {
		t.Errorf("undeclared hint populated: %+v", ann)
	}
	if cfg.Capabilities == nil || cfg.Capabilities.Tools == nil ||
		!cfg.Capabilities.Tools.ListChanged || !cfg.Capabilities.Logging {
		t.Errorf("server_capabilities not parsed: %+v", cfg.Capabilities)
	}

	echo := cfg.Tools[1]
	if echo.Kind != KindCommand || echo.Command == nil {
		t.Errorf("echo tool shape wrong: %+v", echo)
	}
	if got := echo.ExecTimeout(cfg.Execution); got != 2*time.Second {
		t.Errorf("echo timeout = %v, want per-tool 2s", got)
	}

	// Per-kind default applies when the tool declares none.
	none := ToolDefinition{Kind: KindCommand}
	if got := none.ExecTimeout(cfg.Execution); got != 5*time.Second {
		t.Errorf("default command timeout = %v, want 5s from execution block", got)
	}
}

func TestDefaultsWithoutFileValues(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Transport.Type != TransportStdio {
		t.Errorf("default transport = %q", cfg.Transport.Type)
	}
	var sse *SSEConfig
	if got := sse.KeepAlive(); got != 30*time.Second {
		t.Errorf("nil sse keep alive = %v", got)
	}
	tool := ToolDefinition{Kind: KindHTTP}
	if got := tool.ExecTimeout(ExecutionConfig{}); got != 30*time.Second {
		t.Errorf("default http timeout = %v", got)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Tools = []ToolDefinition{{
			Name: "t", Kind: KindHTTP,
			HTTP: &HTTPMetadata{URL: "http://x", Method: "GET"},
		}}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no tools", func(c *Config) { c.Tools = nil }, "at least one tool"},
		{"duplicate name", func(c *Config) { c.Tools = append(c.Tools, c.Tools[0]) }, "duplicate"},
		{"empty name", func(c *Config) { c.Tools[0].Name = "" }, "empty name"},
		{"bad kind", func(c *Config) { c.Tools[0].Kind = "FTP" }, "tool_type"},
		{"missing metadata", func(c *Config) { c.Tools[0].HTTP = nil }, "http_metadata"},
		{"both metadata", func(c *Config) { c.Tools[0].Command = &CommandMetadata{Command: "x"} }, "must not carry"},
		{"bad method", func(c *Config) { c.Tools[0].HTTP.Method = "HEAD" }, "method"},
		{"no url", func(c *Config) { c.Tools[0].HTTP.URL = "" }, "url"},
		{"bad timeout", func(c *Config) { c.Tools[0].Timeout = "soon" }, "timeout"},
		{"sse without address", func(c *Config) {
			c.Transport = TransportConfig{Type: TransportSSE}
		}, "address"},
		{"bad transport", func(c *Config) { c.Transport.Type = "PIPE" }, "transport_type"},
		{"command without executable", func(c *Config) {
			c.Tools[0] = ToolDefinition{Name: "c", Kind: KindCommand, Command: &CommandMetadata{}}
		}, "command"},
	}

	for _, tc := range cases {
		cfg := base()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: validation passed, want error containing %q", tc.name, tc.want)
			continue
		}
		var cerr *Error
		if !errors.As(err, &cerr) {
			t.Errorf("%s: error type %T, want *Error", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLBRIDGE_LOG_LEVEL", "warn")
	t.Setenv("TOOLBRIDGE_SSE_ADDRESS", "0.0.0.0:9999")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.Transport.SSE.Address != "0.0.0.0:9999" {
		t.Errorf("address = %q", cfg.Transport.SSE.Address)
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("want *Error, got %T: %v", err, err)
	}
}
