package scheduler

import (
	"time"

	"github.com/JonMunkholm/ovdsync/internal/core"
)

// State is what a config's job is doing right now.
type State string

const (
	StateDisabled  State = "DISABLED"
	StateScheduled State = "SCHEDULED"
	StateRunning   State = "RUNNING"
)

// Transition returns the run state to persist after a run of cfg that
// ended with runErr. disable is true when the failure exhausted the
// config's retries; the job must then be stopped and a notification sent.
//
//	success             -> retry_count = 0, last_sync_at = now
//	failure, below max  -> retry_count + 1
//	failure, at max     -> enabled = false, retry_count = 0
func Transition(cfg core.SyncConfig, runErr error, now time.Time) (st core.RunState, disable bool) {
	if runErr == nil {
		return core.RunState{RetryCount: 0, Enabled: true, LastSyncAt: &now}, false
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	retries := cfg.RetryCount + 1
	if retries >= maxRetries {
		return core.RunState{RetryCount: 0, Enabled: false}, true
	}
	return core.RunState{RetryCount: retries, Enabled: true}, false
}
