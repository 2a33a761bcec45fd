package core

import (
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImportFile         AuditAction = "IMPORT_FILE"
	ActionExportFile         AuditAction = "EXPORT_FILE"
	ActionDeleteFile         AuditAction = "DELETE_FILE"
	ActionCreateSyncConfig   AuditAction = "CREATE_SYNC_CONFIG"
	ActionUpdateSyncConfig   AuditAction = "UPDATE_SYNC_CONFIG"
	ActionDeleteSyncConfig   AuditAction = "DELETE_SYNC_CONFIG"
	ActionTriggerManualSync  AuditAction = "TRIGGER_MANUAL_SYNC"
	ActionAutomatedSync      AuditAction = "AUTOMATED_SYNC"
	ActionSyncConfigDisabled AuditAction = "SYNC_CONFIG_DISABLED"
)

// EntityType is the kind of object an audit entry is about.
type EntityType string

const (
	EntityFile          EntityType = "FILE"
	EntitySyncConfig    EntityType = "SYNC_CONFIG"
	EntitySyncOperation EntityType = "SYNC_OPERATION"
	EntityFuelRecord    EntityType = "FUEL_RECORD"
)

// AuditResult is the outcome recorded for an action.
type AuditResult string

const (
	ResultSuccess AuditResult = "SUCCESS"
	ResultFailed  AuditResult = "FAILED"
	ResultPartial AuditResult = "PARTIAL"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditRecord is what callers hand to Append.
type AuditRecord struct {
	Actor        Actor
	Action       AuditAction
	EntityType   EntityType
	EntityID     string
	Changes      map[string]any
	Metadata     map[string]any
	Result       AuditResult
	ErrorMessage string
	IPAddress    string // defaults to the request context value
	UserAgent    string // defaults to the request context value
}

// AuditEntry is a stored audit log row.
type AuditEntry struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	UserEmail      string         `json:"userEmail,omitempty"`
	UserRole       string         `json:"userRole,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	ActionType     AuditAction    `json:"actionType"`
	EntityType     EntityType     `json:"entityType"`
	EntityID       string         `json:"entityId,omitempty"`
	Severity       AuditSeverity  `json:"severity"`
	Changes        map[string]any `json:"changes,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IPAddress      string         `json:"ipAddress,omitempty"`
	UserAgent      string         `json:"userAgent,omitempty"`
	Result         AuditResult    `json:"result"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// RecentFilter selects the global activity feed.
type RecentFilter struct {
	ActionType AuditAction
	Result     AuditResult
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
}

// Default page sizes for audit queries.
const (
	DefaultAuditLimit  = 50
	DefaultRecentLimit = 100
	MaxAuditLimit      = 1000
)

// auditSeverity returns the appropriate severity for an action.
func auditSeverity(action AuditAction, result AuditResult) AuditSeverity {
	switch {
	case action == ActionSyncConfigDisabled:
		return SeverityCritical
	case result == ResultFailed:
		return SeverityHigh
	case action == ActionImportFile, action == ActionDeleteFile, action == ActionDeleteSyncConfig:
		return SeverityHigh
	case action == ActionAutomatedSync:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// changeSet records before and after values of the named config fields.
func changeSet(before, after *SyncConfig, fields []string) map[string]any {
	b, a := configFieldValues(before), configFieldValues(after)
	changes := make(map[string]any, len(fields))
	for _, f := range fields {
		changes[f] = map[string]any{"before": b[f], "after": a[f]}
	}
	return changes
}

func configFieldValues(c *SyncConfig) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return map[string]any{
		"config_name":         c.ConfigName,
		"enabled":             c.Enabled,
		"sync_direction":      c.SyncDirection,
		"schedule_frequency":  c.ScheduleFrequency,
		"cron_expression":     c.CronExpression,
		"vessel_filter":       c.VesselFilter,
		"date_range_filter":   c.DateRangeFilter,
		"auto_approve":        c.AutoApprove,
		"notification_emails": c.NotificationEmails,
		"notify_on_error":     c.NotifyOnError,
		"notify_on_success":   c.NotifyOnSuccess,
		"max_retries":         c.MaxRetries,
	}
}
