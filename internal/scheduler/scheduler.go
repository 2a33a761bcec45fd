// Package scheduler runs enabled sync configs on their cron schedules.
//
// One robfig/cron instance holds a timer per config id. Each tick reloads
// the config, runs a sync as the system actor and applies the retry state
// machine in Transition: a config whose failures reach max_retries is
// disabled, unscheduled and reported through the Notifier.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/robfig/cron/v3"
)

// Runner performs a sync run. *core.Service implements it.
type Runner interface {
	RunSync(ctx context.Context, actor core.Actor, req core.SyncRequest) (*core.SyncRunResult, error)
}

// ConfigStore is the part of core.Store the scheduler uses.
type ConfigStore interface {
	ListEnabledSyncConfigs(ctx context.Context) ([]core.SyncConfig, error)
	GetSyncConfig(ctx context.Context, id string) (*core.SyncConfig, error)
	SaveRunState(ctx context.Context, id string, st core.RunState) error
	SetNextSyncAt(ctx context.Context, id string, next time.Time) error
}

type job struct {
	entryID cron.EntryID
	expr    string
}

// Scheduler owns the cron timers of all enabled sync configs.
type Scheduler struct {
	runner   Runner
	store    ConfigStore
	notifier Notifier
	audit    core.Auditor
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time

	cron *cron.Cron

	mu   sync.Mutex
	jobs map[string]*job
	// running is keyed by config id so it survives a timer being replaced.
	running map[string]bool
	ctx     context.Context
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithAuditor records SYNC_CONFIG_DISABLED entries.
func WithAuditor(a core.Auditor) Option {
	return func(s *Scheduler) { s.audit = a }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a stopped scheduler. A nil notifier logs notifications.
func New(runner Runner, store ConfigStore, notifier Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		store:    store,
		notifier: notifier,
		logger:   slog.Default(),
		loc:      time.UTC,
		now:      time.Now,
		jobs:     make(map[string]*job),
		running:  make(map[string]bool),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}

	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	return s
}

// Initialize schedules every enabled config and starts the timers. Configs
// that cannot be scheduled are logged and skipped. Runs started later use
// ctx, so cancelling it aborts them.
func (s *Scheduler) Initialize(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	n, err := s.load(ctx)
	s.cron.Start()
	return n, err
}

// Reload drops every timer and schedules the enabled configs again.
func (s *Scheduler) Reload(ctx context.Context) (int, error) {
	s.removeAll()
	return s.load(ctx)
}

func (s *Scheduler) load(ctx context.Context) (int, error) {
	cfgs, err := s.store.ListEnabledSyncConfigs(ctx)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, cfg := range cfgs {
		if err := s.ScheduleSync(ctx, cfg); err != nil {
			s.logger.Warn("skipping sync config", "config_id", cfg.ID, "config_name", cfg.ConfigName, "error", err)
			continue
		}
		scheduled++
	}
	s.logger.Info("scheduler initialized", "configs_scheduled", scheduled, "configs_enabled", len(cfgs))
	return scheduled, nil
}

// ScheduleSync starts the timer for cfg, replacing any existing one, and
// records when it fires next. A disabled config is only unscheduled.
func (s *Scheduler) ScheduleSync(ctx context.Context, cfg core.SyncConfig) error {
	const op = "schedule sync"

	if !cfg.Enabled {
		s.StopSync(cfg.ID)
		return nil
	}
	expr, err := core.CronExpression(cfg)
	if err != nil {
		return err
	}
	if _, ok := cfg.SyncDirection.Direction(); !ok {
		return core.NewError(core.KindConfiguration, op, "config %s has invalid direction %q", cfg.ID, cfg.SyncDirection)
	}

	id := cfg.ID
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).
		Then(cron.FuncJob(func() { s.tick(id) }))

	s.mu.Lock()
	if old, ok := s.jobs[id]; ok {
		s.cron.Remove(old.entryID)
		delete(s.jobs, id)
	}
	entryID, err := s.cron.AddJob(expr, wrapped)
	if err != nil {
		s.mu.Unlock()
		return core.WrapError(core.KindConfiguration, op, err)
	}
	s.jobs[id] = &job{entryID: entryID, expr: expr}
	s.mu.Unlock()

	s.logger.Info("sync scheduled", "config_id", id, "cron_expression", expr)
	s.refreshNext(ctx, id)
	return nil
}

// StopSync removes the timer of id. Unknown ids are ignored.
func (s *Scheduler) StopSync(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	s.cron.Remove(j.entryID)
	delete(s.jobs, id)
	s.logger.Info("sync unscheduled", "config_id", id)
}

// StopAll removes every timer and stops the cron runner. The returned
// context is done once running syncs have finished.
func (s *Scheduler) StopAll() context.Context {
	s.removeAll()
	return s.cron.Stop()
}

func (s *Scheduler) removeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		s.cron.Remove(j.entryID)
		delete(s.jobs, id)
	}
}

// State reports whether id is unscheduled, waiting or running.
func (s *Scheduler) State(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.jobs[id]
	switch {
	case !ok:
		return StateDisabled
	case s.running[id]:
		return StateRunning
	default:
		return StateScheduled
	}
}

// Jobs returns the ids that have a live timer, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NextRun returns when id fires next, or the zero time when it has no timer.
func (s *Scheduler) NextRun(id string) time.Time {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}

	entry := s.cron.Entry(j.entryID)
	if !entry.Valid() {
		return time.Time{}
	}
	return entry.Schedule.Next(s.now().In(s.loc))
}

func (s *Scheduler) refreshNext(ctx context.Context, id string) {
	next := s.NextRun(id)
	if next.IsZero() {
		return
	}
	if err := s.store.SetNextSyncAt(ctx, id, next); err != nil {
		s.logger.Warn("failed to record next sync time", "config_id", id, "error", err)
	}
}

// begin marks id as running. It reports false when id has no timer or a
// previous run of it has not finished.
func (s *Scheduler) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok || s.running[id] {
		return false
	}
	s.running[id] = true
	return true
}

func (s *Scheduler) finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// tick is one scheduled run of config id.
func (s *Scheduler) tick(id string) {
	ctx := s.runContext()
	log := s.logger.With("config_id", id)

	cfg, err := s.store.GetSyncConfig(ctx, id)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			log.Info("sync config gone, unscheduling")
			s.StopSync(id)
			return
		}
		log.Error("failed to load sync config", "error", err)
		return
	}
	if !cfg.Enabled {
		log.Info("sync config disabled, unscheduling")
		s.StopSync(id)
		return
	}

	if !s.begin(id) {
		log.Debug("no timer or previous run still in progress, skipping")
		return
	}
	defer s.finish(id)

	direction, _ := cfg.SyncDirection.Direction()
	start := s.now()
	res, runErr := s.runner.RunSync(ctx, core.SystemActor, core.SyncRequest{
		Direction:    direction,
		SyncType:     core.SyncAutomated,
		ConfigID:     id,
		VesselFilter: cfg.VesselFilter,
		DateFilter:   cfg.DateRangeFilter,
	})
	now := s.now()

	st, disable := Transition(*cfg, runErr, now)
	if err := s.store.SaveRunState(ctx, id, st); err != nil {
		log.Error("failed to save run state", "error", err)
	}

	n := Notification{
		ConfigID:   id,
		ConfigName: cfg.ConfigName,
		Recipients: cfg.NotificationEmails,
		RetryCount: cfg.RetryCount + 1,
		MaxRetries: cfg.MaxRetries,
		At:         now,
	}
	if res != nil {
		n.Status = res.Status
		n.SyncHistoryID = res.SyncHistoryID
	}

	switch {
	case disable:
		s.StopSync(id)
		n.Event = EventSyncDisabled
		n.Error = runErr.Error()
		log.Error("sync config disabled after repeated failures",
			"retry_count", n.RetryCount,
			"max_retries", cfg.MaxRetries,
			"error", runErr,
		)
		s.notify(ctx, n)
		s.auditDisabled(ctx, *cfg, runErr)
		return
	case runErr != nil:
		n.Event = EventSyncFailed
		n.Error = runErr.Error()
		log.Warn("scheduled sync failed", "retry_count", st.RetryCount, "max_retries", cfg.MaxRetries, "error", runErr)
		if cfg.NotifyOnError {
			s.notify(ctx, n)
		}
	default:
		n.Event = EventSyncSucceeded
		n.RetryCount = 0
		log.Info("scheduled sync completed", "duration_ms", now.Sub(start).Milliseconds())
		if cfg.NotifyOnSuccess {
			s.notify(ctx, n)
		}
	}

	s.refreshNext(ctx, id)
}

func (s *Scheduler) notify(ctx context.Context, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("sync notification failed", "config_id", n.ConfigID, "event", n.Event, "error", err)
	}
}

func (s *Scheduler) auditDisabled(ctx context.Context, cfg core.SyncConfig, runErr error) {
	if s.audit == nil {
		return
	}
	s.audit.Append(ctx, core.AuditRecord{
		Actor:      core.SystemActor,
		Action:     core.ActionSyncConfigDisabled,
		EntityType: core.EntitySyncConfig,
		EntityID:   cfg.ID,
		Changes: map[string]any{
			"enabled": map[string]any{"before": true, "after": false},
		},
		Metadata: map[string]any{
			"config_name": cfg.ConfigName,
			"max_retries": cfg.MaxRetries,
		},
		Result:       core.ResultSuccess,
		ErrorMessage: runErr.Error(),
	})
}

// cronLogger sends cron's own logging to slog. Its info output is per-tick
// noise, so it goes to debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
