package core

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/JonMunkholm/ovdsync/internal/logging"
)

// CreateSyncConfig validates and stores a new sync schedule.
func (s *Service) CreateSyncConfig(ctx context.Context, actor Actor, in SyncConfigInput) (*SyncConfig, error) {
	const op = "create sync config"

	cfg := &SyncConfig{
		OrganizationID:     actor.OrganizationID,
		ConfigName:         strings.TrimSpace(in.ConfigName),
		Enabled:            in.Enabled,
		SyncDirection:      in.SyncDirection,
		ScheduleFrequency:  in.ScheduleFrequency,
		CronExpression:     strings.TrimSpace(in.CronExpression),
		VesselFilter:       in.VesselFilter,
		DateRangeFilter:    in.DateRangeFilter,
		AutoApprove:        in.AutoApprove,
		NotificationEmails: in.NotificationEmails,
		NotifyOnError:      true,
		NotifyOnSuccess:    in.NotifyOnSuccess,
		MaxRetries:         in.MaxRetries,
		CreatedBy:          actor.ID,
	}
	if in.NotifyOnError != nil {
		cfg.NotifyOnError = *in.NotifyOnError
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = s.defaultMaxRetries
	}
	if cfg.NotificationEmails == nil {
		cfg.NotificationEmails = []string{}
	}

	if err := validateSyncConfig(*cfg); err != nil {
		return nil, err
	}

	if err := s.store.CreateSyncConfig(ctx, cfg); err != nil {
		err = storageError(op, err)
		s.auditConfig(ctx, actor, ActionCreateSyncConfig, "", nil, ResultFailed, err)
		return nil, err
	}

	s.auditConfig(ctx, actor, ActionCreateSyncConfig, cfg.ID,
		changeSet(nil, cfg, UpdatableConfigFields), ResultSuccess, nil)
	logging.FromContext(ctx).Info("sync config created", "config_id", cfg.ID, "config_name", cfg.ConfigName)
	return cfg, nil
}

// UpdateSyncConfig applies the allow-listed fields of patch to a config.
// Unknown fields are ignored; a patch with no known field is a validation
// error. It returns the stored config and the fields that were applied.
func (s *Service) UpdateSyncConfig(ctx context.Context, actor Actor, id string, patch map[string]json.RawMessage) (*SyncConfig, []string, error) {
	const op = "update sync config"

	before, err := s.store.GetSyncConfig(ctx, id)
	if err != nil {
		return nil, nil, storageError(op, err)
	}

	after := before.clone()
	applied, err := applyConfigPatch(&after, patch)
	if err != nil {
		return nil, nil, err
	}
	if len(applied) == 0 {
		return nil, nil, NewError(KindValidation, op, "no valid fields to update")
	}
	after.ConfigName = strings.TrimSpace(after.ConfigName)
	after.CronExpression = strings.TrimSpace(after.CronExpression)
	if after.NotificationEmails == nil {
		after.NotificationEmails = []string{}
	}
	if err := validateSyncConfig(after); err != nil {
		return nil, nil, err
	}

	if err := s.store.UpdateSyncConfig(ctx, &after); err != nil {
		err = storageError(op, err)
		s.auditConfig(ctx, actor, ActionUpdateSyncConfig, id, nil, ResultFailed, err)
		return nil, nil, err
	}

	s.auditConfig(ctx, actor, ActionUpdateSyncConfig, id, changeSet(before, &after, applied), ResultSuccess, nil)
	logging.FromContext(ctx).Info("sync config updated", "config_id", id, "fields", applied)
	return &after, applied, nil
}

// DeleteSyncConfig removes a config and returns what was deleted.
func (s *Service) DeleteSyncConfig(ctx context.Context, actor Actor, id string) (*SyncConfig, error) {
	const op = "delete sync config"

	before, err := s.store.GetSyncConfig(ctx, id)
	if err != nil {
		return nil, storageError(op, err)
	}

	if err := s.store.DeleteSyncConfig(ctx, id); err != nil {
		err = storageError(op, err)
		s.auditConfig(ctx, actor, ActionDeleteSyncConfig, id, nil, ResultFailed, err)
		return nil, err
	}

	s.auditConfig(ctx, actor, ActionDeleteSyncConfig, id,
		changeSet(before, nil, UpdatableConfigFields), ResultSuccess, nil)
	logging.FromContext(ctx).Info("sync config deleted", "config_id", id)
	return before, nil
}

// GetSyncConfigByID returns one config or NOT_FOUND.
func (s *Service) GetSyncConfigByID(ctx context.Context, id string) (*SyncConfig, error) {
	cfg, err := s.store.GetSyncConfig(ctx, id)
	if err != nil {
		return nil, storageError("get sync config", err)
	}
	return cfg, nil
}

func (s *Service) auditConfig(ctx context.Context, actor Actor, action AuditAction, id string, changes map[string]any, result AuditResult, err error) {
	rec := AuditRecord{
		Actor:      actor,
		Action:     action,
		EntityType: EntitySyncConfig,
		EntityID:   id,
		Changes:    changes,
		Result:     result,
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	s.audit.Append(ctx, rec)
}
