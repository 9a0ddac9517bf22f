package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTransport validates a transport name, aliases included
func (v *Validator) ValidateTransport(transport string) error {
	switch NormalizeTransport(transport) {
	case TransportSequential, TransportConcurrent:
		return nil
	}
	return fmt.Errorf("invalid transport: %q (must be one of: sequential, concurrent, stdio, http)", transport)
}

// ValidatePort validates a listen port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateStorePath validates the store document path
func (v *Validator) ValidateStorePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	return nil
}

// ValidateTimeout validates the upstream timeout
func (v *Validator) ValidateTimeout(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %d", seconds)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateTransport(cfg.Transport); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePort(cfg.Port); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateStorePath(cfg.StorePath); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateTimeout(cfg.Upstream.TimeoutSeconds); err != nil {
		errors = append(errors, err)
	}
	if cfg.Upstream.MaxResponseBytes <= 0 {
		errors = append(errors, fmt.Errorf("upstream.max_response_bytes must be positive"))
	}

	if cfg.Gateway.RequestsPerMinute < 0 {
		errors = append(errors, fmt.Errorf("gateway.requests_per_minute must be >= 0"))
	}
	if cfg.Gateway.MaxConcurrent < 0 {
		errors = append(errors, fmt.Errorf("gateway.max_concurrent must be >= 0"))
	}
	if cfg.Gateway.MaxBodyBytes < 0 {
		errors = append(errors, fmt.Errorf("gateway.max_body_bytes must be >= 0"))
	}
	if cfg.Gateway.ShutdownTimeoutSeconds < 0 {
		errors = append(errors, fmt.Errorf("gateway.shutdown_timeout_seconds must be >= 0"))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
