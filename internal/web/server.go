// Package web provides the HTTP API for OVD import, export and sync.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/config"
	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/scheduler"
	mw "github.com/JonMunkholm/ovdsync/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Service is the sync service the handlers call. *core.Service implements it.
type Service interface {
	ImportFile(ctx context.Context, actor core.Actor, req core.ImportRequest) (*core.ImportResult, error)
	ExportFile(ctx context.Context, actor core.Actor, req core.ExportRequest) (*core.ExportResult, error)
	RunSync(ctx context.Context, actor core.Actor, req core.SyncRequest) (*core.SyncRunResult, error)
	GetSyncStatus(ctx context.Context, limit int) ([]core.SyncStatusEntry, error)
	GetSyncConfig(ctx context.Context, orgID string) ([]core.SyncConfig, error)
	CreateSyncConfig(ctx context.Context, actor core.Actor, in core.SyncConfigInput) (*core.SyncConfig, error)
	UpdateSyncConfig(ctx context.Context, actor core.Actor, id string, patch map[string]json.RawMessage) (*core.SyncConfig, []string, error)
	DeleteSyncConfig(ctx context.Context, actor core.Actor, id string) (*core.SyncConfig, error)
	Limiter() *core.ImportLimiter
}

// AuditLog answers audit queries. *core.AuditService implements it.
type AuditLog interface {
	Recent(ctx context.Context, f core.RecentFilter) ([]core.AuditEntry, error)
	ByEntity(ctx context.Context, entityType core.EntityType, entityID string, limit int) ([]core.AuditEntry, error)
	ByActor(ctx context.Context, userID string, limit int) ([]core.AuditEntry, error)
}

// Scheduler keeps cron timers in step with config changes.
// *scheduler.Scheduler implements it.
type Scheduler interface {
	ScheduleSync(ctx context.Context, cfg core.SyncConfig) error
	StopSync(id string)
	State(id string) scheduler.State
}

// Server is the HTTP server for the OVD sync API.
type Server struct {
	cfg     *config.Config
	service Service
	audit   AuditLog
	sched   Scheduler
	router  *chi.Mux
	server  *http.Server

	limiter       *rateLimiter
	uploadLimiter *rateLimiter
}

// NewServer creates a new Server instance. A nil scheduler leaves config
// changes unscheduled, which is what a server with the scheduler disabled
// wants.
func NewServer(cfg *config.Config, service Service, audit AuditLog, sched Scheduler) *Server {
	if sched == nil {
		sched = noScheduler{}
	}
	s := &Server{
		cfg:     cfg,
		service: service,
		audit:   audit,
		sched:   sched,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadLimiter = newRateLimiter(cfg.Rate.UploadLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(traceID)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type", "X-API-Key", "X-Trace-ID",
			"X-User-ID", "X-User-Email", "X-User-Role", "X-Organization-ID",
		},
		ExposedHeaders: []string{"X-Trace-ID", "Content-Disposition"},
		MaxAge:         300,
	}).Handler)

	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/ovd", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		r.Use(actorIdentity)

		// Import and sync are expensive; they get the tighter limit.
		r.Group(func(r chi.Router) {
			if s.uploadLimiter != nil {
				r.Use(s.uploadLimiter.middleware)
			}
			r.Post("/import", s.handleImport)
			r.Post("/sync", s.handleSync)
		})

		r.Get("/export", s.handleExport)
		r.Get("/sync-status", s.handleSyncStatus)
		r.Get("/import-queue", s.handleImportQueueStatus)

		r.Get("/schedule", s.handleListSchedules)
		r.Post("/schedule", s.handleCreateSchedule)
		r.Patch("/schedule/{id}", s.handleUpdateSchedule)
		r.Delete("/schedule/{id}", s.handleDeleteSchedule)

		r.Get("/audit-log", s.handleAuditLog)
		r.Get("/audit-log/entity/{entityType}/{entityId}", s.handleAuditByEntity)
		r.Get("/audit-log/actor/{userId}", s.handleAuditByActor)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
		s.uploadLimiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// JSON only; nothing here should load resources.
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

type noScheduler struct{}

func (noScheduler) ScheduleSync(context.Context, core.SyncConfig) error { return nil }
func (noScheduler) StopSync(string)                                     {}
func (noScheduler) State(string) scheduler.State                        { return scheduler.StateDisabled }
