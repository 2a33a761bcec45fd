package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() SyncConfigInput {
	return SyncConfigInput{
		ConfigName:        " Nightly export ",
		Enabled:           true,
		SyncDirection:     ConfigExportOnly,
		ScheduleFrequency: FrequencyDaily,
	}
}

func TestCreateSyncConfig_Defaults(t *testing.T) {
	store := newMemStore()
	svc, audit := newTestService(t, store, WithDefaultMaxRetries(3))

	cfg, err := svc.CreateSyncConfig(context.Background(), testActor, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, "Nightly export", cfg.ConfigName)
	assert.True(t, cfg.NotifyOnError)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "org-1", cfg.OrganizationID)
	assert.Equal(t, "user-1", cfg.CreatedBy)
	assert.NotNil(t, cfg.NotificationEmails)

	rec := audit.last()
	assert.Equal(t, ActionCreateSyncConfig, rec.Action)
	assert.Equal(t, EntitySyncConfig, rec.EntityType)
	assert.Equal(t, cfg.ID, rec.EntityID)
	assert.Contains(t, rec.Changes, "config_name")
}

func TestCreateSyncConfig_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*SyncConfigInput)
		wantKind ErrorKind
	}{
		{"missing name", func(in *SyncConfigInput) { in.ConfigName = "  " }, KindValidation},
		{"bad direction", func(in *SyncConfigInput) { in.SyncDirection = "BOTH" }, KindValidation},
		{"missing frequency", func(in *SyncConfigInput) { in.ScheduleFrequency = "" }, KindConfiguration},
		{"negative retries", func(in *SyncConfigInput) { in.MaxRetries = -1 }, KindValidation},
		{"bad cron", func(in *SyncConfigInput) {
			in.ScheduleFrequency = FrequencyCustom
			in.CronExpression = "61 * * * *"
		}, KindConfiguration},
		{"custom without cron", func(in *SyncConfigInput) { in.ScheduleFrequency = FrequencyCustom }, KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc, _ := newTestService(t, store)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.CreateSyncConfig(context.Background(), testActor, in)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Empty(t, store.configs)
		})
	}
}

func TestCreateSyncConfig_ExplicitNotifyOnError(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	off := false
	in := validInput()
	in.NotifyOnError = &off
	in.MaxRetries = 5

	cfg, err := svc.CreateSyncConfig(context.Background(), testActor, in)
	require.NoError(t, err)
	assert.False(t, cfg.NotifyOnError)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func patchOf(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	var patch map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &patch))
	return patch
}

func TestUpdateSyncConfig_AppliesAllowListedFields(t *testing.T) {
	store := newMemStore()
	svc, audit := newTestService(t, store)
	cfg, err := svc.CreateSyncConfig(context.Background(), testActor, validInput())
	require.NoError(t, err)

	updated, applied, err := svc.UpdateSyncConfig(context.Background(), testActor, cfg.ID,
		patchOf(t, `{"enabled": false, "vessel_filter": ["9876543"], "id": "hijack", "retry_count": 9}`))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"enabled", "vessel_filter"}, applied)
	assert.False(t, updated.Enabled)
	assert.Equal(t, []string{"9876543"}, updated.VesselFilter)
	assert.Equal(t, cfg.ID, updated.ID)
	assert.Zero(t, store.configs[cfg.ID].RetryCount)

	rec := audit.last()
	assert.Equal(t, ActionUpdateSyncConfig, rec.Action)
	require.Contains(t, rec.Changes, "enabled")
	assert.Equal(t, map[string]any{"before": true, "after": false}, rec.Changes["enabled"])
	assert.NotContains(t, rec.Changes, "config_name")
}

func TestUpdateSyncConfig_UnknownFieldsOnly(t *testing.T) {
	store := newMemStore()
	svc, audit := newTestService(t, store)
	cfg, err := svc.CreateSyncConfig(context.Background(), testActor, validInput())
	require.NoError(t, err)
	before := store.configs[cfg.ID]

	_, _, err = svc.UpdateSyncConfig(context.Background(), testActor, cfg.ID, patchOf(t, `{"organization_id": "other"}`))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "VAL005", MapError(err).Code)

	assert.Equal(t, before.OrganizationID, store.configs[cfg.ID].OrganizationID)
	assert.Len(t, audit.byAction(ActionUpdateSyncConfig), 0)
}

func TestUpdateSyncConfig_InvalidResultKeepsStoredConfig(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	cfg, err := svc.CreateSyncConfig(context.Background(), testActor, validInput())
	require.NoError(t, err)

	_, _, err = svc.UpdateSyncConfig(context.Background(), testActor, cfg.ID,
		patchOf(t, `{"cron_expression": "not a cron", "vessel_filter": ["1"]}`))
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))

	stored := store.configs[cfg.ID]
	assert.Empty(t, stored.CronExpression)
	assert.Empty(t, stored.VesselFilter)
}

func TestUpdateSyncConfig_BadFieldType(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	cfg, err := svc.CreateSyncConfig(context.Background(), testActor, validInput())
	require.NoError(t, err)

	_, _, err = svc.UpdateSyncConfig(context.Background(), testActor, cfg.ID, patchOf(t, `{"max_retries": "three"}`))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestUpdateSyncConfig_NotFound(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	_, _, err := svc.UpdateSyncConfig(context.Background(), testActor, "missing", patchOf(t, `{"enabled": true}`))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestDeleteSyncConfig(t *testing.T) {
	store := newMemStore()
	svc, audit := newTestService(t, store)
	cfg, err := svc.CreateSyncConfig(context.Background(), testActor, validInput())
	require.NoError(t, err)

	deleted, err := svc.DeleteSyncConfig(context.Background(), testActor, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, deleted.ID)
	assert.Empty(t, store.configs)

	rec := audit.last()
	assert.Equal(t, ActionDeleteSyncConfig, rec.Action)
	assert.Equal(t, map[string]any{"before": "Nightly export", "after": nil}, rec.Changes["config_name"])

	_, err = svc.DeleteSyncConfig(context.Background(), testActor, cfg.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestGetSyncConfig_FiltersByOrganization(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)

	_, err := svc.CreateSyncConfig(context.Background(), testActor, validInput())
	require.NoError(t, err)
	other := testActor
	other.OrganizationID = "org-2"
	_, err = svc.CreateSyncConfig(context.Background(), other, validInput())
	require.NoError(t, err)

	cfgs, err := svc.GetSyncConfig(context.Background(), "org-2")
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, "org-2", cfgs[0].OrganizationID)

	all, err := svc.GetSyncConfig(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := svc.GetSyncConfig(context.Background(), "org-9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
