package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/apibridge/internal/config"
	"github.com/harun/apibridge/internal/tracing"
	"github.com/harun/apibridge/pkg/gateway"
	"github.com/harun/apibridge/pkg/stdio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve registered APIs as tools",
	Long: `Serve registered APIs as tools.

With the sequential transport (default) requests are read as newline-delimited
JSON-RPC from stdin and answered on stdout, one at a time. With the concurrent
transport an HTTP gateway accepts requests on /mcp and websocket sessions on
/ws, handling each request independently.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("transport", config.TransportSequential, "transport: sequential (stdio) or concurrent (http)")
	f.String("host", "127.0.0.1", "listen host for the concurrent transport")
	f.Int("port", 3000, "listen port for the concurrent transport")
	f.String("store", "", "store file (default is apis.json next to the config file)")
	f.String("inbound-token", "", "bearer token required by the gateway")
	f.Bool("no-admin", false, "hide the tools that add or change APIs")
	f.Int("timeout", 30, "upstream request timeout in seconds")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logs, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logs.Close()

	if cfg.Tracing.Enabled {
		var opts []sdktrace.TracerProviderOption
		if cfg.Tracing.Endpoint != "" {
			exporter, err := tracing.WithOTLPExporter(context.Background(), cfg.Tracing.Endpoint)
			if err != nil {
				return fmt.Errorf("failed to create trace exporter: %w", err)
			}
			opts = append(opts, exporter)
		}
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, version, opts...); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		log.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("Tracing enabled")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	a.logs = logs

	log.Info().
		Str("transport", cfg.Transport).
		Str("store", a.store.Path()).
		Int("apis", a.store.Count()).
		Bool("admin_disabled", a.registry.Gate().Disabled).
		Msg("Starting apibridge")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Transport == config.TransportSequential {
		return a.serveSequential(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return a.serveConcurrent(ctx)
}

// serveSequential answers stdin until EOF or a signal.
func (a *app) serveSequential(ctx context.Context, in io.Reader, out io.Writer) error {
	srv := stdio.NewServer(a.dispatcher, stdio.WithMetrics(a.metrics))
	err := srv.Serve(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Interrupted, stopping")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Msg("Input closed, stopping")
	return nil
}

// serveConcurrent runs the gateway until ctx is done, then shuts it down
// within the configured timeout.
func (a *app) serveConcurrent(ctx context.Context) error {
	srv, err := gateway.NewServer(gateway.Config{
		Host:              a.cfg.Host,
		Port:              a.cfg.Port,
		InboundToken:      a.cfg.InboundToken,
		Handler:           a.dispatcher,
		Metrics:           a.metrics,
		Audit:             a.audit,
		Logger:            a.logs.Component("gateway"),
		RequestsPerMinute: a.cfg.Gateway.RequestsPerMinute,
		MaxConcurrent:     a.cfg.Gateway.MaxConcurrent,
		MaxBodyBytes:      a.cfg.Gateway.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	a.notify = srv.NotifyToolsChanged

	if err := srv.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		timeout := time.Duration(a.cfg.Gateway.ShutdownTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
