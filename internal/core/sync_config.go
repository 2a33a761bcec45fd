package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ConfigDirection is what a scheduled sync does.
type ConfigDirection string

const (
	ConfigImportOnly    ConfigDirection = "IMPORT_ONLY"
	ConfigExportOnly    ConfigDirection = "EXPORT_ONLY"
	ConfigBidirectional ConfigDirection = "BIDIRECTIONAL"
)

// Direction maps a config direction to a sync run direction.
func (d ConfigDirection) Direction() (Direction, bool) {
	switch d {
	case ConfigImportOnly:
		return DirectionImport, true
	case ConfigExportOnly:
		return DirectionExport, true
	case ConfigBidirectional:
		return DirectionBidirectional, true
	}
	return "", false
}

// Frequency is a schedule preset.
type Frequency string

const (
	FrequencyHourly Frequency = "HOURLY"
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
	FrequencyCustom Frequency = "CUSTOM"
)

var frequencyCron = map[Frequency]string{
	FrequencyHourly: "0 * * * *",
	FrequencyDaily:  "0 2 * * *",
	FrequencyWeekly: "0 2 * * 0",
}

// DateRangeFilter narrows scheduled exports. Explicit dates win over
// LastDays; an empty filter uses the service default window.
type DateRangeFilter struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	LastDays  int    `json:"lastDays,omitempty"`
}

// SyncConfig is a stored sync schedule.
type SyncConfig struct {
	ID                 string           `json:"id"`
	OrganizationID     string           `json:"organization_id,omitempty"`
	ConfigName         string           `json:"config_name"`
	Enabled            bool             `json:"enabled"`
	SyncDirection      ConfigDirection  `json:"sync_direction"`
	ScheduleFrequency  Frequency        `json:"schedule_frequency"`
	CronExpression     string           `json:"cron_expression,omitempty"`
	VesselFilter       []string         `json:"vessel_filter,omitempty"`
	DateRangeFilter    *DateRangeFilter `json:"date_range_filter,omitempty"`
	AutoApprove        bool             `json:"auto_approve"`
	NotificationEmails []string         `json:"notification_emails"`
	NotifyOnError      bool             `json:"notify_on_error"`
	NotifyOnSuccess    bool             `json:"notify_on_success"`
	RetryCount         int              `json:"retry_count"`
	MaxRetries         int              `json:"max_retries"`
	LastSyncAt         *time.Time       `json:"last_sync_at,omitempty"`
	NextSyncAt         *time.Time       `json:"next_sync_at,omitempty"`
	CreatedBy          string           `json:"created_by,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// clone returns a copy that shares no slices or pointers with c.
func (c *SyncConfig) clone() SyncConfig {
	out := *c
	out.VesselFilter = append([]string(nil), c.VesselFilter...)
	out.NotificationEmails = append([]string(nil), c.NotificationEmails...)
	if c.DateRangeFilter != nil {
		f := *c.DateRangeFilter
		out.DateRangeFilter = &f
	}
	return out
}

// SyncConfigInput creates a SyncConfig.
type SyncConfigInput struct {
	ConfigName         string           `json:"config_name"`
	Enabled            bool             `json:"enabled"`
	SyncDirection      ConfigDirection  `json:"sync_direction"`
	ScheduleFrequency  Frequency        `json:"schedule_frequency"`
	CronExpression     string           `json:"cron_expression"`
	VesselFilter       []string         `json:"vessel_filter"`
	DateRangeFilter    *DateRangeFilter `json:"date_range_filter"`
	AutoApprove        bool             `json:"auto_approve"`
	NotificationEmails []string         `json:"notification_emails"`
	NotifyOnError      *bool            `json:"notify_on_error"`
	NotifyOnSuccess    bool             `json:"notify_on_success"`
	MaxRetries         int              `json:"max_retries"`
}

// RunState is the scheduler-owned part of a SyncConfig, written in one
// statement after every run.
type RunState struct {
	RetryCount int
	Enabled    bool
	LastSyncAt *time.Time
}

// CronExpression resolves the schedule of cfg. An explicit expression wins
// over the frequency preset. Missing or invalid schedules are configuration
// errors.
func CronExpression(cfg SyncConfig) (string, error) {
	const op = "resolve schedule"

	expr := strings.TrimSpace(cfg.CronExpression)
	if expr == "" {
		expr = frequencyCron[cfg.ScheduleFrequency]
	}
	if expr == "" {
		return "", NewError(KindConfiguration, op,
			"config %s has neither a cron expression nor a known schedule frequency (%q)", cfg.ID, cfg.ScheduleFrequency)
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return "", &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf("invalid cron expression %q", expr), Err: err}
	}
	return expr, nil
}

// Window returns the export range for a run at now.
func (f *DateRangeFilter) Window(now time.Time, fallback time.Duration) DateRange {
	end := truncateDay(now)
	if f != nil {
		start, errStart := time.Parse(dateLayout, f.StartDate)
		stop, errEnd := time.Parse(dateLayout, f.EndDate)
		if errStart == nil && errEnd == nil {
			return DateRange{Start: start, End: stop}
		}
		if f.LastDays > 0 {
			return DateRange{Start: end.AddDate(0, 0, -f.LastDays), End: end}
		}
	}
	return DateRange{Start: truncateDay(now.Add(-fallback)), End: end}
}

// UpdatableConfigFields lists the fields UpdateSyncConfig accepts.
var UpdatableConfigFields = []string{
	"config_name",
	"enabled",
	"sync_direction",
	"schedule_frequency",
	"cron_expression",
	"vessel_filter",
	"date_range_filter",
	"auto_approve",
	"notification_emails",
	"notify_on_error",
	"notify_on_success",
	"max_retries",
}

// applyConfigPatch copies allow-listed fields from patch onto cfg and
// returns the names it applied. Unknown fields are ignored.
func applyConfigPatch(cfg *SyncConfig, patch map[string]json.RawMessage) ([]string, error) {
	var applied []string

	for _, name := range UpdatableConfigFields {
		raw, ok := patch[name]
		if !ok {
			continue
		}

		var target any
		switch name {
		case "config_name":
			target = &cfg.ConfigName
		case "enabled":
			target = &cfg.Enabled
		case "sync_direction":
			target = &cfg.SyncDirection
		case "schedule_frequency":
			target = &cfg.ScheduleFrequency
		case "cron_expression":
			target = &cfg.CronExpression
		case "vessel_filter":
			target = &cfg.VesselFilter
		case "date_range_filter":
			target = &cfg.DateRangeFilter
		case "auto_approve":
			target = &cfg.AutoApprove
		case "notification_emails":
			target = &cfg.NotificationEmails
		case "notify_on_error":
			target = &cfg.NotifyOnError
		case "notify_on_success":
			target = &cfg.NotifyOnSuccess
		case "max_retries":
			target = &cfg.MaxRetries
		}

		if err := json.Unmarshal(raw, target); err != nil {
			return nil, NewError(KindValidation, "update sync config", "field %s: %v", name, err)
		}
		applied = append(applied, name)
	}

	return applied, nil
}

// validateSyncConfig checks the fields every stored config needs.
func validateSyncConfig(cfg SyncConfig) error {
	const op = "validate sync config"

	if strings.TrimSpace(cfg.ConfigName) == "" {
		return NewError(KindValidation, op, "required field config_name is missing")
	}
	if _, ok := cfg.SyncDirection.Direction(); !ok {
		return NewError(KindValidation, op, "invalid direction %q", cfg.SyncDirection)
	}
	if cfg.ScheduleFrequency == "" {
		return NewError(KindConfiguration, op, "required field schedule_frequency is missing")
	}
	if cfg.MaxRetries <= 0 {
		return NewError(KindValidation, op, "max_retries must be positive")
	}
	_, err := CronExpression(cfg)
	return err
}
