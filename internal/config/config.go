package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Transport names
const (
	TransportSequential = "sequential"
	TransportConcurrent = "concurrent"
)

// Config represents the main apibridge configuration
type Config struct {
	// Transport selects the sequential (stdio) or concurrent (http/ws) adapter.
	Transport string `json:"transport" mapstructure:"transport"`

	// Concurrent transport listen address
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`

	// StorePath is the descriptor store document.
	StorePath string `json:"store_path" mapstructure:"store_path"`

	// InboundToken, when set, is required as a bearer token by the concurrent
	// transport.
	InboundToken string `json:"inbound_token" mapstructure:"inbound_token"`

	// AdminDisabled hides the mutating built-in tools.
	AdminDisabled bool `json:"admin_disabled" mapstructure:"admin_disabled"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Upstream UpstreamConfig `json:"upstream" mapstructure:"upstream"`
	Gateway  GatewayConfig  `json:"gateway" mapstructure:"gateway"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Tracing  TracingConfig  `json:"tracing" mapstructure:"tracing"`
}

// UpstreamConfig bounds outbound API calls
type UpstreamConfig struct {
	TimeoutSeconds   int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxResponseBytes int64  `json:"max_response_bytes" mapstructure:"max_response_bytes"`
	UserAgent        string `json:"user_agent" mapstructure:"user_agent"`
}

// GatewayConfig holds per-session limits of the concurrent transport
type GatewayConfig struct {
	RequestsPerMinute      int   `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent          int   `json:"max_concurrent" mapstructure:"max_concurrent"`
	MaxBodyBytes           int64 `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	ShutdownTimeoutSeconds int   `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"` // registry change trail, off when empty
}

// TracingConfig controls OpenTelemetry span export
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
	Endpoint    string `json:"endpoint" mapstructure:"endpoint"` // OTLP gRPC collector, spans are not exported when empty
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportSequential,
		Host:      "127.0.0.1",
		Port:      3000,
		Upstream: UpstreamConfig{
			TimeoutSeconds:   30,
			MaxResponseBytes: 1 << 20,
			UserAgent:        "apibridge",
		},
		Gateway: GatewayConfig{
			RequestsPerMinute:      600,
			MaxConcurrent:          32,
			MaxBodyBytes:           4 << 20,
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "apibridge",
		},
	}
}

// NormalizeTransport maps accepted aliases to the canonical transport name.
// Unknown names are returned lower-cased so validation can report them.
func NormalizeTransport(name string) string {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case "stdio", "sequential":
		return TransportSequential
	case "http", "ws", "concurrent":
		return TransportConcurrent
	}
	return name
}

// DefaultDataDir returns $HOME/.apibridge.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".apibridge"), nil
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.InboundToken != "" {
		masked.InboundToken = "********"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
