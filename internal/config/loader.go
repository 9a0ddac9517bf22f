package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. APIBRIDGE_STORE_PATH.
const EnvPrefix = "APIBRIDGE"

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"transport":     "transport",
	"host":          "host",
	"port":          "port",
	"store":         "store_path",
	"inbound-token": "inbound_token",
	"no-admin":      "admin_disabled",
	"timeout":       "upstream.timeout_seconds",
	"log-level":     "logging.level",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
	flags      *pflag.FlagSet
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// WithFlags makes flags that were set on the command line override the file
// and the environment.
func (l *Loader) WithFlags(flags *pflag.FlagSet) *Loader {
	l.flags = flags
	return l
}

// setDefaults registers every key so that environment overrides apply even
// without a config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("transport", cfg.Transport)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("store_path", cfg.StorePath)
	v.SetDefault("inbound_token", cfg.InboundToken)
	v.SetDefault("admin_disabled", cfg.AdminDisabled)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("upstream.timeout_seconds", cfg.Upstream.TimeoutSeconds)
	v.SetDefault("upstream.max_response_bytes", cfg.Upstream.MaxResponseBytes)
	v.SetDefault("upstream.user_agent", cfg.Upstream.UserAgent)
	v.SetDefault("gateway.requests_per_minute", cfg.Gateway.RequestsPerMinute)
	v.SetDefault("gateway.max_concurrent", cfg.Gateway.MaxConcurrent)
	v.SetDefault("gateway.max_body_bytes", cfg.Gateway.MaxBodyBytes)
	v.SetDefault("gateway.shutdown_timeout_seconds", cfg.Gateway.ShutdownTimeoutSeconds)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
}

// Load resolves the configuration: defaults, then the config file (a missing
// file is not an error), then APIBRIDGE_* environment variables, then flags.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	// Setup viper
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v, DefaultConfig())

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.flags != nil {
		for name, key := range FlagKeys {
			if flag := l.flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Read config file
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Transport = NormalizeTransport(cfg.Transport)

	// Set data directory if not specified
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}

	// Set store path if not specified
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.DataDir, "apis.json")
	}

	return cfg, nil
}

// Save writes the configuration file with owner-only permissions.
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolvePath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Setup viper
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigPermissions(0600)

	// Set all config values (use canonical fields only)
	v.Set("transport", cfg.Transport)
	v.Set("host", cfg.Host)
	v.Set("port", cfg.Port)
	v.Set("store_path", cfg.StorePath)
	v.Set("inbound_token", cfg.InboundToken)
	v.Set("admin_disabled", cfg.AdminDisabled)
	v.Set("data_dir", cfg.DataDir)
	v.Set("upstream", cfg.Upstream)
	v.Set("gateway", cfg.Gateway)
	v.Set("logging", cfg.Logging)
	v.Set("tracing", cfg.Tracing)

	// Write config file
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.resolvePath()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) resolvePath() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	dir, err := DefaultDataDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(dir, "apibridge.json"), nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
