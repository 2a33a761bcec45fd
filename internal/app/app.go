// Package app wires configuration, the database and the sync service
// together for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/ovdsync/internal/config"
	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/database"
	"github.com/JonMunkholm/ovdsync/internal/scheduler"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the long-lived components shared by the server and the CLI.
type App struct {
	Config    *config.Config
	Pool      *pgxpool.Pool
	Store     *core.PostgresStore
	Audit     *core.AuditService
	Service   *core.Service
	Scheduler *scheduler.Scheduler
}

// New connects to the database and builds the service and scheduler. The
// scheduler is built but not started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := database.MigrateURL(ctx, cfg.Database.URL); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("migrations applied")
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}

	store := core.NewPostgresStore(pool)
	audit := core.NewAuditService(pool)
	limiter := core.NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	service := core.NewService(store, audit,
		core.WithExportDir(cfg.Export.Dir),
		core.WithInboxDir(cfg.Upload.InboxDir),
		core.WithExportWindow(cfg.Export.DefaultWindow),
		core.WithDefaultMaxRetries(cfg.Scheduler.DefaultMaxRetries),
		core.WithImportLimiter(limiter),
	)

	var notifier scheduler.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = scheduler.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}
	sched := scheduler.New(service, store, notifier,
		scheduler.WithLocation(loc),
		scheduler.WithAuditor(audit),
	)

	return &App{
		Config:    cfg,
		Pool:      pool,
		Store:     store,
		Audit:     audit,
		Service:   service,
		Scheduler: sched,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}
