package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bomdiff/internal/compare"
	"github.com/JonMunkholm/bomdiff/internal/config"
	"github.com/JonMunkholm/bomdiff/internal/core"
	"github.com/JonMunkholm/bomdiff/internal/history"
	"github.com/JonMunkholm/bomdiff/internal/logging"
	"github.com/JonMunkholm/bomdiff/internal/metrics"
	"github.com/JonMunkholm/bomdiff/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.URL,
		"compare_max_concurrent", cfg.Compare.MaxConcurrent,
		"session_ttl", cfg.Compare.SessionTTL,
		"history_enabled", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	client, err := compare.New(cfg.Backend.URL, compare.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		slog.Error("failed to create comparison client", "error", err)
		os.Exit(1)
	}

	limiter := core.NewCompareLimiter(cfg.Compare.MaxConcurrent, cfg.Compare.MaxWaitTime)
	serviceOpts := []core.ServiceOption{
		core.WithLimiter(limiter),
		core.WithSessionTTL(cfg.Compare.SessionTTL),
		core.WithMaxFileSize(cfg.Compare.MaxFileSize),
	}
	if cfg.Metrics.Enabled {
		serviceOpts = append(serviceOpts, core.WithMetrics(metrics.NewRecorder()))
	}

	serverOpts := []web.Option{web.WithBackendHealth(client)}

	// History is optional; without a database the service keeps results
	// in memory only.
	ctx := context.Background()
	if cfg.Database.Enabled() {
		pool, err := history.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to history database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := history.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare history schema", "error", err)
			os.Exit(1)
		}
		slog.Info("comparison history enabled")

		serviceOpts = append(serviceOpts, core.WithHistory(store))
		serverOpts = append(serverOpts, web.WithHistory(store))
	}

	service := core.NewService(client, serviceOpts...)
	server := web.NewServer(cfg, service, serverOpts...)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartJanitor(jobCtx, cfg.Compare.JanitorInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for running comparisons to complete (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for comparisons to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("comparisons did not complete in time", "error", err)
			} else {
				slog.Info("all comparisons completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
