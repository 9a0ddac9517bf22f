package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/harun/apibridge/internal/audit"
	"github.com/harun/apibridge/internal/config"
	"github.com/harun/apibridge/internal/logger"
	"github.com/harun/apibridge/internal/metrics"
	"github.com/harun/apibridge/pkg/dispatch"
	"github.com/harun/apibridge/pkg/executor"
	"github.com/harun/apibridge/pkg/registry"
	"github.com/harun/apibridge/pkg/store"
	"github.com/spf13/cobra"
)

// app holds the components shared by both transports.
type app struct {
	cfg        *config.Config
	logs       *logger.Logger
	metrics    *metrics.Metrics
	audit      *audit.Logger
	store      *store.Store
	registry   *registry.Registry
	executor   *executor.Executor
	dispatcher *dispatch.Dispatcher

	// notify is called after a tool call adds, removes or toggles a tool.
	notify func()
}

// loadConfig resolves configuration from file, environment and the flags of
// cmd, then validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).WithFlags(cmd.Flags()).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config, out io.Writer) (*logger.Logger, error) {
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	logCfg.MaxSize = cfg.Logging.MaxSize
	logCfg.MaxAge = cfg.Logging.MaxAge
	logCfg.Compress = cfg.Logging.Compress
	logCfg.Redaction = cfg.Logging.Redaction
	logCfg.Output = out
	return logger.New(logCfg)
}

// newApp opens the store and wires registry, executor and dispatcher.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		metrics: metrics.NewMetrics(),
	}

	if cfg.Logging.AuditFile != "" {
		trail, err := audit.Open(cfg.Logging.AuditFile)
		if err != nil {
			return nil, err
		}
		a.audit = trail
	}

	s, err := store.Open(cfg.StorePath,
		store.WithReservedNames(registry.BuiltinNames()...),
		store.WithMetrics(a.metrics),
	)
	if err != nil {
		a.audit.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.store = s

	a.registry = registry.New(s, registry.AdminGate{Disabled: cfg.AdminDisabled})

	execCfg := executor.DefaultConfig()
	execCfg.Timeout = time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second
	if cfg.Upstream.MaxResponseBytes > 0 {
		execCfg.MaxResponseBytes = cfg.Upstream.MaxResponseBytes
	}
	if cfg.Upstream.UserAgent != "" {
		execCfg.UserAgent = cfg.Upstream.UserAgent
	}
	a.executor = executor.New(execCfg,
		executor.WithVariables(s),
		executor.WithMetrics(a.metrics),
	)

	a.dispatcher = dispatch.New(dispatch.Config{
		Store:          s,
		Registry:       a.registry,
		Executor:       a.executor,
		Metrics:        a.metrics,
		Audit:          a.audit,
		Version:        version,
		OnToolsChanged: a.toolsChanged,
	})

	return a, nil
}

func (a *app) close() error {
	return a.audit.Close()
}

func (a *app) toolsChanged() {
	if a.notify != nil {
		a.notify()
	}
}
