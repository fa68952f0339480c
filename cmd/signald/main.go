// Signald serves the unified signal feed over HTTP.
//
// It registers one adapter per configured credential, then exposes the
// merged feed, integration health, coverage, Prometheus metrics, and the
// WhatsApp webhook.
//
// Configuration is read from ~/.config/signald/config.yaml (or --config)
// and overridden by environment variables. See internal/config.
//
// Usage:
//
//	# Start with defaults
//	signald
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9191 SLACK_TOKEN=xoxp-... ASANA_TOKEN=... signald
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/aggregate"
	"github.com/fyrsmithlabs/signald/internal/config"
	httpserver "github.com/fyrsmithlabs/signald/internal/http"
	"github.com/fyrsmithlabs/signald/internal/logging"
	"github.com/fyrsmithlabs/signald/internal/metrics"
	"github.com/fyrsmithlabs/signald/internal/secrets"
	"github.com/fyrsmithlabs/signald/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/signald/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  signald [--config path]   Start the signald daemon\n")
			fmt.Fprintf(os.Stderr, "  signald version           Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("signald by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts signald and blocks until ctx is cancelled.
//
// Startup order:
//  1. Load and validate configuration
//  2. Initialize logger and telemetry
//  3. Build adapters from the configured credentials
//  4. Start the HTTP server
//  5. Shut down gracefully on cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting signald",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("sources", cfg.ConfiguredSources()))

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version), logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	scrubber, err := secrets.New(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize scrubber: %w", err)
	}

	manager, err := aggregate.NewFromConfig(ctx, cfg, logger,
		adapters.Deps{Metrics: metrics.NewMetrics(), Scrubber: scrubber},
		aggregate.WithTracer(tel.Tracer("github.com/fyrsmithlabs/signald")))
	if err != nil {
		return fmt.Errorf("failed to build integrations: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn(context.Background(), "manager close failed", zap.Error(err))
		}
	}()
	if manager.Len() == 0 {
		logger.Warn(ctx, "no integrations configured; set SLACK_TOKEN, ASANA_TOKEN, LINEAR_TOKEN, GITHUB_TOKEN or WHATSAPP_TOKEN")
	}

	srv, err := httpserver.NewServer(manager, logger, &httpserver.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Version:     version,
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
