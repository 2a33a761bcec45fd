package core

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/logging"
)

// DefaultExportWindow is the export range used when a sync run names none.
const DefaultExportWindow = 30 * 24 * time.Hour

// DefaultStatusLimit is the number of history rows GetSyncStatus returns
// when the caller passes no limit.
const DefaultStatusLimit = 10

// Service provides the sync operations: file import and export, sync runs,
// history and config management. All persistence goes through the Store.
type Service struct {
	store Store
	audit Auditor

	exportDir         string
	inboxDir          string
	exportWindow      time.Duration
	defaultMaxRetries int
	limiter           *ImportLimiter
	now               func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithExportDir sets where exported workbooks are written.
func WithExportDir(dir string) Option {
	return func(s *Service) { s.exportDir = dir }
}

// WithInboxDir sets the directory sync runs import from.
func WithInboxDir(dir string) Option {
	return func(s *Service) { s.inboxDir = dir }
}

// WithExportWindow sets the default export range of sync runs.
func WithExportWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.exportWindow = d
		}
	}
}

// WithDefaultMaxRetries sets max_retries for configs created without one.
func WithDefaultMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultMaxRetries = n
		}
	}
}

// WithImportLimiter bounds concurrent imports.
func WithImportLimiter(l *ImportLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil auditor logs audit records only.
func NewService(store Store, audit Auditor, opts ...Option) *Service {
	if audit == nil {
		audit = LogAuditor{}
	}
	s := &Service{
		store:             store,
		audit:             audit,
		exportDir:         os.TempDir(),
		exportWindow:      DefaultExportWindow,
		defaultMaxRetries: 3,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limiter returns the import limiter, or nil when imports are unbounded.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// acquireImport takes an import slot when a limiter is configured.
func (s *Service) acquireImport(ctx context.Context) (release func(), err error) {
	if s.limiter == nil {
		return func() {}, nil
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyImports) {
			return nil, WrapError(KindConnectivity, "import file", err)
		}
		return nil, err
	}
	return s.limiter.Release, nil
}

// removeFile deletes a staged or partially written file. A file that is
// already gone is not an error.
func removeFile(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.FromContext(ctx).Warn("failed to remove file", "path", path, "error", err)
	}
}

func since(start, end time.Time) time.Duration {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}
