package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/ovd"
)

// Store is the persistence the service needs. PostgresStore is the
// production implementation; tests use an in-memory one.
type Store interface {
	// InTx runs fn against a store bound to one transaction. Calling InTx
	// on a transactional store opens a savepoint.
	InTx(ctx context.Context, fn func(Store) error) error

	CreateFileMetadata(ctx context.Context, m *FileMetadata) error
	FinishFileMetadata(ctx context.Context, id string, status ProcessingStatus, errMsg string) error

	CreateSyncHistory(ctx context.Context, h *SyncHistory) error
	FinishSyncHistory(ctx context.Context, id string, c SyncCompletion) error
	ListSyncHistory(ctx context.Context, limit int) ([]SyncStatusEntry, error)

	InsertValidationError(ctx context.Context, row ValidationErrorRow) error

	// InsertLedgerEntries writes the entries of one record atomically. A
	// database refusal of the row is reported as ErrRowRejected.
	InsertLedgerEntries(ctx context.Context, entries []ovd.Entry) error
	QueryLedger(ctx context.Context, f LedgerFilter) ([]ovd.Entry, error)

	ListSyncConfigs(ctx context.Context, orgID string) ([]SyncConfig, error)
	ListEnabledSyncConfigs(ctx context.Context) ([]SyncConfig, error)
	GetSyncConfig(ctx context.Context, id string) (*SyncConfig, error)
	CreateSyncConfig(ctx context.Context, cfg *SyncConfig) error
	UpdateSyncConfig(ctx context.Context, cfg *SyncConfig) error
	DeleteSyncConfig(ctx context.Context, id string) error
	SaveRunState(ctx context.Context, id string, st RunState) error
	SetNextSyncAt(ctx context.Context, id string, next time.Time) error
}
