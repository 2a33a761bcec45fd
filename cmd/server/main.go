package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/ovdsync/internal/app"
	"github.com/JonMunkholm/ovdsync/internal/config"
	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/JonMunkholm/ovdsync/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logFile := logging.Setup(cfg.Logging)
	defer logFile.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"scheduler_enabled", cfg.Scheduler.Enabled,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Background jobs stop when jobCtx is cancelled.
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	var sched web.Scheduler
	if cfg.Scheduler.Enabled {
		n, err := a.Scheduler.Initialize(jobCtx)
		if err != nil {
			slog.Error("failed to initialize scheduler", "error", err)
			os.Exit(1)
		}
		slog.Info("scheduler started", "configs", n, "timezone", cfg.Scheduler.Timezone)
		sched = a.Scheduler
	}

	go core.StartFileSweeper(jobCtx, core.SweepConfig{
		Name:     "uploads",
		Dir:      cfg.Upload.Dir,
		MaxAge:   cfg.Upload.MaxAge,
		Interval: cfg.Upload.SweepInterval,
	})
	go core.StartFileSweeper(jobCtx, core.SweepConfig{
		Name:     "exports",
		Dir:      cfg.Export.Dir,
		MaxAge:   cfg.Export.MaxAge,
		Interval: cfg.Upload.SweepInterval,
	})

	server := web.NewServer(cfg, a.Service, a.Audit, sched)

	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if cfg.Scheduler.Enabled {
			select {
			case <-a.Scheduler.StopAll().Done():
				slog.Info("scheduler stopped")
			case <-shutdownCtx.Done():
				slog.Warn("scheduled syncs did not finish in time")
			}
		}

		// Wait for active imports to complete (with timeout)
		limiter := a.Service.Limiter()
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		cancelJobs()
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
