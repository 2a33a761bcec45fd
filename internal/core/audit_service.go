package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Auditor appends audit entries. Implementations never fail the caller.
type Auditor interface {
	Append(ctx context.Context, rec AuditRecord) *AuditEntry
}

// AuditService writes and queries ovd_audit_log.
type AuditService struct {
	db DBTX
}

// NewAuditService creates a new audit service.
func NewAuditService(db DBTX) *AuditService {
	return &AuditService{db: db}
}

// appendTimeout bounds an insert that no longer follows the caller's deadline.
const appendTimeout = 5 * time.Second

const auditColumns = `id, user_id, user_email, user_role, organization_id,
	action_type, entity_type, entity_id, severity, changes, metadata,
	ip_address, user_agent, result, error_message, created_at`

// Append inserts one audit entry. A failed insert is logged and nil is
// returned; the audit trail never blocks the operation being audited.
func (a *AuditService) Append(ctx context.Context, rec AuditRecord) *AuditEntry {
	if rec.IPAddress == "" {
		rec.IPAddress = GetIPAddressFromContext(ctx)
	}
	if rec.UserAgent == "" {
		rec.UserAgent = GetUserAgentFromContext(ctx)
	}
	if rec.Result == "" {
		rec.Result = ResultSuccess
	}

	// Detached from ctx so failures caused by cancellation are still recorded.
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	entry, err := a.insert(insertCtx, rec)
	if err != nil {
		logging.FromContext(ctx).Error("audit append failed",
			"action_type", rec.Action,
			"entity_type", rec.EntityType,
			"entity_id", rec.EntityID,
			"error", err,
		)
		return nil
	}
	return entry
}

func (a *AuditService) insert(ctx context.Context, rec AuditRecord) (*AuditEntry, error) {
	changes, err := marshalJSON(rec.Changes)
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}
	metadata, err := marshalJSON(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	row := a.db.QueryRow(ctx, `
		INSERT INTO ovd_audit_log (
			user_id, user_email, user_role, organization_id,
			action_type, entity_type, entity_id, severity, changes, metadata,
			ip_address, user_agent, result, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+auditColumns,
		rec.Actor.ID,
		ToPgText(rec.Actor.Email),
		ToPgText(rec.Actor.Role),
		ToPgText(rec.Actor.OrganizationID),
		string(rec.Action),
		string(rec.EntityType),
		ToPgText(rec.EntityID),
		string(auditSeverity(rec.Action, rec.Result)),
		changes,
		metadata,
		parseIPAddress(rec.IPAddress),
		ToPgText(rec.UserAgent),
		string(rec.Result),
		ToPgText(rec.ErrorMessage),
	)
	return scanAuditEntry(row)
}

// ByEntity returns the newest entries about one entity.
func (a *AuditService) ByEntity(ctx context.Context, entityType EntityType, entityID string, limit int) ([]AuditEntry, error) {
	return a.query(ctx, `SELECT `+auditColumns+` FROM ovd_audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		string(entityType), entityID, clampLimit(limit, DefaultAuditLimit))
}

// ByActor returns the newest entries written by one user.
func (a *AuditService) ByActor(ctx context.Context, userID string, limit int) ([]AuditEntry, error) {
	return a.query(ctx, `SELECT `+auditColumns+` FROM ovd_audit_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, clampLimit(limit, DefaultAuditLimit))
}

// Recent returns the global activity feed, newest first.
func (a *AuditService) Recent(ctx context.Context, f RecentFilter) ([]AuditEntry, error) {
	wb := NewWhereBuilder()
	wb.Add("action_type", string(f.ActionType))
	wb.Add("result", string(f.Result))
	wb.AddTimestampRange("created_at", f.StartTime, f.EndTime)

	where, args := wb.Build()
	query := fmt.Sprintf(`SELECT %s FROM ovd_audit_log%s ORDER BY created_at DESC LIMIT $%d`,
		auditColumns, where, wb.NextArgIndex())
	args = append(args, clampLimit(f.Limit, DefaultRecentLimit))

	return a.query(ctx, query, args...)
}

func (a *AuditService) query(ctx context.Context, sql string, args ...any) ([]AuditEntry, error) {
	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageError("query audit log", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, storageError("scan audit log", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("query audit log", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.Row) (*AuditEntry, error) {
	var (
		id             pgtype.UUID
		userID         string
		userEmail      pgtype.Text
		userRole       pgtype.Text
		organizationID pgtype.Text
		actionType     string
		entityType     string
		entityID       pgtype.Text
		severity       string
		changes        []byte
		metadata       []byte
		ipAddress      *netip.Addr
		userAgent      pgtype.Text
		result         string
		errorMessage   pgtype.Text
		createdAt      pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &userID, &userEmail, &userRole, &organizationID,
		&actionType, &entityType, &entityID, &severity, &changes, &metadata,
		&ipAddress, &userAgent, &result, &errorMessage, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	entry := &AuditEntry{
		ID:             PgUUIDToString(id),
		UserID:         userID,
		UserEmail:      userEmail.String,
		UserRole:       userRole.String,
		OrganizationID: organizationID.String,
		ActionType:     AuditAction(actionType),
		EntityType:     EntityType(entityType),
		EntityID:       entityID.String,
		Severity:       AuditSeverity(severity),
		UserAgent:      userAgent.String,
		Result:         AuditResult(result),
		ErrorMessage:   errorMessage.String,
		CreatedAt:      createdAt.Time,
	}
	if ipAddress != nil {
		entry.IPAddress = ipAddress.String()
	}
	if changes != nil {
		_ = json.Unmarshal(changes, &entry.Changes)
	}
	if metadata != nil {
		_ = json.Unmarshal(metadata, &entry.Metadata)
	}

	return entry, nil
}

// parseIPAddress strips a port and parses the address; unparseable input
// is stored as NULL.
func parseIPAddress(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}

func marshalJSON(v map[string]any) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxAuditLimit {
		return MaxAuditLimit
	}
	return limit
}

// LogAuditor writes audit records to slog only. The ovdctl command uses it
// when no audit table is wanted.
type LogAuditor struct{}

// Append logs rec and returns nil.
func (LogAuditor) Append(ctx context.Context, rec AuditRecord) *AuditEntry {
	slog.InfoContext(ctx, "audit",
		"action_type", rec.Action,
		"entity_type", rec.EntityType,
		"entity_id", rec.EntityID,
		"user_id", rec.Actor.ID,
		"result", rec.Result,
	)
	return nil
}
