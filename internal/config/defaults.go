package config

import (
	"time"

	"github.com/bobmcallan/toolbridge/internal/common"
)

const (
	// DefaultSSEPath is the endpoint clients open to establish a session.
	DefaultSSEPath = "/sse"
	// DefaultPostPath is the endpoint clients POST requests to.
	DefaultPostPath = "/message"

	defaultKeepAlive      = 30 * time.Second
	defaultHTTPTimeout    = 30 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// NewDefaultConfig returns a Config with sensible defaults. File values
// unmarshal on top of it.
func NewDefaultConfig() *Config {
	return &Config{
		ServerInfo: ServerInfo{
			Name: "toolbridge",
		},
		Transport: TransportConfig{
			Type: TransportStdio,
		},
		Logging: common.LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console", "file"},
			FilePath:   "logs/toolbridge.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}
