// Package main implements the entry point for the quickMARC service.
// It wires storage, events, exports and the HTTP server from the environment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/config"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/converter"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/event"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/export"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/server"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/service"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/storage"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/telemetry"
)

const serviceName = "quickmarc-service"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

// newLogger configures structured logging; debug level in dev.
func newLogger(cfg config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Spans go to stderr so they do not interleave with the JSON log stream.
	if _, err := telemetry.InitTracer(serviceName, version, os.Stderr); err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(shutdownCtx)
	}()

	// Initialize storage backend (PostgreSQL or in-memory)
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		store = pg
	} else {
		logger.Warn("QM_DB_DSN not set, records are kept in memory")
		store = storage.NewMemory()
	}
	defer store.Close()

	// Initialize event publisher (NATS JetStream or no-op)
	pub := event.NewNoop()
	if cfg.NATSURL != "" {
		pub = event.NewPublisher(cfg.NATSURL)
	}
	defer pub.Close()

	opts := service.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	}
	if cfg.ExportEnabled() {
		exporter, err := export.NewS3Exporter(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 exporter: %w", err)
		}
		opts.Exporter = exporter
	}
	if cfg.ValidateContent {
		validator, err := schema.NewValidator()
		if err != nil {
			return fmt.Errorf("failed to initialize schema validator: %w", err)
		}
		opts.Validator = validator
	}

	m := metrics.NewMetrics()
	svc := service.New(store, converter.New(), pub, m, opts)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.NewMux(svc, m, cfg.CORSAllowedOrigins),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env,
			"export", cfg.ExportEnabled(), "validate", cfg.ValidateContent)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
