// Package config is the configuration collaborator: it parses the YAML tool
// file into immutable in-memory structures and validates them structurally
// before the core starts. Any violation here is fatal — the process must not
// serve with a malformed registry or transport config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bobmcallan/toolbridge/internal/common"
)

// Error marks a configuration problem. Callers treat it as fatal at startup.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// ToolKind selects which metadata block a tool definition carries.
type ToolKind string

const (
	KindHTTP    ToolKind = "HTTP"
	KindCommand ToolKind = "COMMAND"
)

// TransportType selects how the server is exposed.
type TransportType string

const (
	TransportStdio TransportType = "STDIO"
	TransportSSE   TransportType = "SSE"
)

// allowedMethods is the whitelist of HTTP methods for HTTP tools.
var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
}

// Config is the root configuration.
type Config struct {
	Tools        []ToolDefinition     `yaml:"tools"`
	Instruction  string               `yaml:"instruction"`
	ServerInfo   ServerInfo           `yaml:"server_info"`
	Capabilities *CapabilitiesConfig  `yaml:"server_capabilities"`
	Transport    TransportConfig      `yaml:"transport_config"`
	Execution    ExecutionConfig      `yaml:"execution"`
	Logging      common.LoggingConfig `yaml:"logging"`
}

// ServerInfo identifies the server in the protocol handshake.
type ServerInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// CapabilitiesConfig overrides the capabilities advertised in the protocol
// handshake. Absent, the server advertises tool support only.
type CapabilitiesConfig struct {
	Tools   *ToolsCapability `yaml:"tools"`
	Logging bool             `yaml:"logging"`
}

// ToolsCapability parameterizes the advertised tool capability.
type ToolsCapability struct {
	ListChanged bool `yaml:"list_changed"`
}

// TransportConfig selects and parameterizes the serving transport.
type TransportConfig struct {
	Type TransportType `yaml:"transport_type"`
	SSE  *SSEConfig    `yaml:"sse_config"`
}

// SSEConfig parameterizes the event-stream transport.
type SSEConfig struct {
	Address           string `yaml:"address"`
	SSEPath           string `yaml:"sse_path"`
	PostPath          string `yaml:"post_path"`
	KeepAliveDuration string `yaml:"keep_alive_duration"`
}

// KeepAlive returns the parsed keep-alive interval, or the default.
func (s *SSEConfig) KeepAlive() time.Duration {
	if s == nil || s.KeepAliveDuration == "" {
		return defaultKeepAlive
	}
	d, err := time.ParseDuration(s.KeepAliveDuration)
	if err != nil || d <= 0 {
		return defaultKeepAlive
	}
	return d
}

// ExecutionConfig bounds tool invocations that declare no timeout of their own.
type ExecutionConfig struct {
	HTTPTimeout    string `yaml:"http_timeout"`
	CommandTimeout string `yaml:"command_timeout"`
}

// ToolDefinition declares one tool. Exactly one metadata block must be
// populated, matching Kind.
type ToolDefinition struct {
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Kind         ToolKind         `yaml:"tool_type"`
	InputSchema  map[string]any   `yaml:"input_schema"`
	OutputSchema map[string]any   `yaml:"output_schema"`
	Annotations  *ToolAnnotations `yaml:"tool_annotations"`
	Timeout      string           `yaml:"timeout"`
	HTTP         *HTTPMetadata    `yaml:"http_metadata"`
	Command      *CommandMetadata `yaml:"command_metadata"`
}

// ToolAnnotations are advisory hints advertised alongside a tool. Absent
// hints stay absent on the wire.
type ToolAnnotations struct {
	Title           string `yaml:"title"`
	ReadOnlyHint    *bool  `yaml:"read_only_hint"`
	DestructiveHint *bool  `yaml:"destructive_hint"`
	IdempotentHint  *bool  `yaml:"idempotent_hint"`
	OpenWorldHint   *bool  `yaml:"open_world_hint"`
}

// HTTPMetadata declares an HTTP tool. url, header values and body are
// template strings.
type HTTPMetadata struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

// CommandMetadata declares a command tool. command is a literal executable
// path — never a template — so input values cannot select the binary.
// args and stdin are template strings.
type CommandMetadata struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Stdin   string   `yaml:"stdin"`
}

// ExecTimeout returns the invocation bound for this tool: its own timeout if
// declared, otherwise the kind's server-wide default.
func (t *ToolDefinition) ExecTimeout(exec ExecutionConfig) time.Duration {
	if t.Timeout != "" {
		if d, err := time.ParseDuration(t.Timeout); err == nil && d > 0 {
			return d
		}
	}
	var raw string
	var fallback time.Duration
	switch t.Kind {
	case KindHTTP:
		raw, fallback = exec.HTTPTimeout, defaultHTTPTimeout
	default:
		raw, fallback = exec.CommandTimeout, defaultCommandTimeout
	}
	if raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// Load reads and validates the configuration file, applying defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorf("read config file %s: %v", path, err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errorf("parse config file %s: %v", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides on top of the file.
func applyEnvOverrides(cfg *Config) {
	if lvl := os.Getenv("TOOLBRIDGE_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if addr := os.Getenv("TOOLBRIDGE_SSE_ADDRESS"); addr != "" {
		if cfg.Transport.SSE == nil {
			cfg.Transport.SSE = &SSEConfig{}
		}
		cfg.Transport.SSE.Address = addr
	}
}

// Validate checks the configuration structurally. Template syntax and schema
// compilation are checked when the registry is built; this pass catches
// everything decidable from the raw declarations.
func (c *Config) Validate() error {
	switch c.Transport.Type {
	case TransportStdio:
	case TransportSSE:
		if c.Transport.SSE == nil || c.Transport.SSE.Address == "" {
			return errorf("transport_config: sse_config.address is required for SSE transport")
		}
		if c.Transport.SSE.KeepAliveDuration != "" {
			if _, err := time.ParseDuration(c.Transport.SSE.KeepAliveDuration); err != nil {
				return errorf("transport_config: invalid keep_alive_duration %q", c.Transport.SSE.KeepAliveDuration)
			}
		}
	default:
		return errorf("transport_config: unsupported transport_type %q", c.Transport.Type)
	}

	if len(c.Tools) == 0 {
		return errorf("tools: at least one tool must be defined")
	}

	seen := make(map[string]bool, len(c.Tools))
	for i := range c.Tools {
		t := &c.Tools[i]
		if err := t.validate(i); err != nil {
			return err
		}
		if seen[t.Name] {
			return errorf("tool %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

func (t *ToolDefinition) validate(index int) error {
	if t.Name == "" {
		return errorf("tool at index %d: empty name", index)
	}
	if t.Timeout != "" {
		if _, err := time.ParseDuration(t.Timeout); err != nil {
			return errorf("tool %q: invalid timeout %q", t.Name, t.Timeout)
		}
	}
	switch t.Kind {
	case KindHTTP:
		if t.HTTP == nil {
			return errorf("tool %q: tool_type HTTP requires http_metadata", t.Name)
		}
		if t.Command != nil {
			return errorf("tool %q: http tool must not carry command_metadata", t.Name)
		}
		if t.HTTP.URL == "" {
			return errorf("tool %q: http_metadata.url is required", t.Name)
		}
		if !allowedMethods[t.HTTP.Method] {
			return errorf("tool %q: unsupported method %q", t.Name, t.HTTP.Method)
		}
	case KindCommand:
		if t.Command == nil {
			return errorf("tool %q: tool_type COMMAND requires command_metadata", t.Name)
		}
		if t.HTTP != nil {
			return errorf("tool %q: command tool must not carry http_metadata", t.Name)
		}
		if t.Command.Command == "" {
			return errorf("tool %q: command_metadata.command is required", t.Name)
		}
	default:
		return errorf("tool %q: unsupported tool_type %q", t.Name, t.Kind)
	}
	return nil
}
