package core

import (
	"context"
)

// GetSyncStatus returns the newest sync history rows with their files.
func (s *Service) GetSyncStatus(ctx context.Context, limit int) ([]SyncStatusEntry, error) {
	if limit <= 0 {
		limit = DefaultStatusLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	rows, err := s.store.ListSyncHistory(ctx, limit)
	if err != nil {
		return nil, storageError("get sync status", err)
	}
	if rows == nil {
		rows = []SyncStatusEntry{}
	}
	return rows, nil
}

// GetSyncConfig returns the sync configs, newest first. An empty orgID
// returns every organization's configs.
func (s *Service) GetSyncConfig(ctx context.Context, orgID string) ([]SyncConfig, error) {
	cfgs, err := s.store.ListSyncConfigs(ctx, orgID)
	if err != nil {
		return nil, storageError("get sync config", err)
	}
	if cfgs == nil {
		cfgs = []SyncConfig{}
	}
	return cfgs, nil
}
