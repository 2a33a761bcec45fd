package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/database"
	"github.com/JonMunkholm/ovdsync/internal/ovd"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Conn is a database handle that can also start transactions.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type Conn interface {
	DBTX
	database.Beginner
}

// PostgresStore implements Store with raw SQL over pgx.
type PostgresStore struct {
	db    DBTX
	begin database.Beginner
}

// NewPostgresStore returns a store on conn.
func NewPostgresStore(conn Conn) *PostgresStore {
	return &PostgresStore{db: conn, begin: conn}
}

// InTx implements Store.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	return database.WithTx(ctx, s.begin, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx, begin: tx})
	})
}

// CreateFileMetadata inserts m and fills its ID and CreatedAt.
func (s *PostgresStore) CreateFileMetadata(ctx context.Context, m *FileMetadata) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO ovd_file_metadata (
			file_name, file_path, file_size_bytes, file_type, operation_type,
			uploaded_by, voyage_id, ship_id, imo_number, record_count,
			date_range_start, date_range_end, processing_status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`,
		m.FileName, m.FilePath, m.FileSizeBytes, m.FileType, string(m.OperationType),
		m.UploadedBy, ToPgUUID(m.VoyageID), ToPgUUID(m.ShipID), ToPgText(m.IMONumber), m.RecordCount,
		ToPgDay(m.DateRangeStart), ToPgDay(m.DateRangeEnd), string(m.ProcessingStatus), ToPgText(m.ErrorMessage),
	).Scan(scanUUID(&m.ID), &m.CreatedAt)
	return storageError("create file metadata", err)
}

// FinishFileMetadata sets the final processing status.
func (s *PostgresStore) FinishFileMetadata(ctx context.Context, id string, status ProcessingStatus, errMsg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ovd_file_metadata
		SET processing_status = $2, error_message = $3
		WHERE id = $1`,
		ToPgUUID(id), string(status), ToPgText(errMsg))
	return storageError("finish file metadata", err)
}

// CreateSyncHistory inserts h and fills its ID and InitiatedAt.
func (s *PostgresStore) CreateSyncHistory(ctx context.Context, h *SyncHistory) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO ovd_sync_history (
			sync_type, operation, direction, initiated_by, sync_config_id,
			file_metadata_id, status, records_processed, records_imported,
			records_exported, records_failed, error_log, execution_time_ms, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, initiated_at`,
		string(h.SyncType), string(h.Operation), string(h.Direction), h.InitiatedBy, ToPgUUID(h.SyncConfigID),
		ToPgUUID(h.FileMetadataID), string(h.Status), h.RecordsProcessed, h.RecordsImported,
		h.RecordsExported, h.RecordsFailed, ToPgText(h.ErrorLog), nullableMillis(h.ExecutionTimeMs), ToPgTimestamptz(h.CompletedAt),
	).Scan(scanUUID(&h.ID), &h.InitiatedAt)
	return storageError("create sync history", err)
}

// FinishSyncHistory completes a sync history row.
func (s *PostgresStore) FinishSyncHistory(ctx context.Context, id string, c SyncCompletion) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ovd_sync_history
		SET status = $2,
			records_processed = $3,
			records_imported = $4,
			records_exported = $5,
			records_failed = $6,
			error_log = $7,
			execution_time_ms = $8,
			completed_at = $9
		WHERE id = $1`,
		ToPgUUID(id), string(c.Status), c.RecordsProcessed, c.RecordsImported,
		c.RecordsExported, c.RecordsFailed, ToPgText(c.ErrorLog),
		c.ExecutionTime.Milliseconds(), c.CompletedAt)
	return storageError("finish sync history", err)
}

// ListSyncHistory returns the newest history rows with their file.
func (s *PostgresStore) ListSyncHistory(ctx context.Context, limit int) ([]SyncStatusEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT h.id, h.sync_type, h.operation, h.direction, h.initiated_by,
			h.sync_config_id, h.file_metadata_id, h.status, h.records_processed,
			h.records_imported, h.records_exported, h.records_failed, h.error_log,
			h.execution_time_ms, h.initiated_at, h.completed_at,
			f.file_name, f.file_type
		FROM ovd_sync_history h
		LEFT JOIN ovd_file_metadata f ON f.id = h.file_metadata_id
		ORDER BY h.initiated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, storageError("list sync history", err)
	}
	defer rows.Close()

	var out []SyncStatusEntry
	for rows.Next() {
		var (
			e                      SyncStatusEntry
			syncType, op, dir, st  string
			configID, fileID       pgtype.UUID
			errorLog, fName, fType pgtype.Text
			execMs                 pgtype.Int8
			completedAt            pgtype.Timestamptz
		)
		if err := rows.Scan(
			scanUUID(&e.ID), &syncType, &op, &dir, &e.InitiatedBy,
			&configID, &fileID, &st, &e.RecordsProcessed,
			&e.RecordsImported, &e.RecordsExported, &e.RecordsFailed, &errorLog,
			&execMs, &e.InitiatedAt, &completedAt,
			&fName, &fType,
		); err != nil {
			return nil, storageError("scan sync history", err)
		}
		e.SyncType = SyncType(syncType)
		e.Operation = Operation(op)
		e.Direction = Flow(dir)
		e.Status = SyncStatus(st)
		e.SyncConfigID = PgUUIDToString(configID)
		e.FileMetadataID = PgUUIDToString(fileID)
		e.ErrorLog = errorLog.String
		e.ExecutionTimeMs = execMs.Int64
		e.CompletedAt = timePtr(completedAt)
		e.FileName = fName.String
		e.FileType = fType.String
		out = append(out, e)
	}
	return out, storageError("list sync history", rows.Err())
}

// InsertValidationError records one rejected row.
func (s *PostgresStore) InsertValidationError(ctx context.Context, row ValidationErrorRow) error {
	severity := row.Severity
	if severity == "" {
		severity = "ERROR"
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO ovd_import_validation_errors (
			sync_history_id, file_metadata_id, row_number, field_name,
			error_type, error_message, severity
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ToPgUUID(row.SyncHistoryID), ToPgUUID(row.FileMetadataID), row.RowNumber, ToPgText(row.FieldName),
		row.ErrorType, row.ErrorMessage, severity)
	return storageError("insert validation error", err)
}

const insertLedgerSQL = `
	INSERT INTO fuel_consumption (
		voyage_id, imo_number, voyage_number, departure_port, arrival_port,
		voyage_leg, voyage_type, event, fuel_type, fuel_category, engine_type,
		consumption_tonnes, consumption_date, fuel_supplier, bunker_delivery_note,
		energy_source_type, energy_consumption_kwh
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// InsertLedgerEntries writes entries under a savepoint so a refused row
// leaves the surrounding transaction usable.
func (s *PostgresStore) InsertLedgerEntries(ctx context.Context, entries []ovd.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.InTx(ctx, func(st Store) error {
		tx := st.(*PostgresStore)
		for _, e := range entries {
			_, err := tx.db.Exec(ctx, insertLedgerSQL,
				ToPgUUID(e.VoyageID), ToPgText(e.IMO), ToPgText(e.VoyageNumber),
				ToPgText(e.DeparturePort), ToPgText(e.ArrivalPort), ToPgText(e.VoyageLeg),
				ToPgText(e.VoyageType), ToPgText(e.Event), string(e.FuelType),
				string(e.FuelCategory), string(e.EngineType), e.ConsumptionTonnes,
				pgtype.Date{Time: e.ConsumptionDate, Valid: !e.ConsumptionDate.IsZero()},
				ToPgText(e.FuelSupplier), ToPgText(e.BunkerDeliveryNote),
				ToPgText(e.EnergySourceType), energyKWh(e),
			)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) {
					return fmt.Errorf("%w: %s", ErrRowRejected, pgErr.Message)
				}
				return storageError("insert ledger entry", err)
			}
		}
		return nil
	})
}

// QueryLedger returns ledger entries ordered by consumption date.
func (s *PostgresStore) QueryLedger(ctx context.Context, f LedgerFilter) ([]ovd.Entry, error) {
	wb := NewWhereBuilder()
	wb.AddExpr("fc.voyage_id::text = %s", f.VoyageID)
	wb.AddExpr("v.ship_id::text = %s", f.ShipID)
	wb.AddExpr("COALESCE(s.imo_number, fc.imo_number) = ANY(%s)", f.IMONumbers)
	if !f.Start.IsZero() {
		wb.AddExpr("fc.consumption_date >= %s", pgtype.Date{Time: truncateDay(f.Start), Valid: true})
	}
	if !f.End.IsZero() {
		wb.AddExpr("fc.consumption_date <= %s", pgtype.Date{Time: truncateDay(f.End), Valid: true})
	}
	where, args := wb.Build()

	rows, err := s.db.Query(ctx, `
		SELECT fc.voyage_id,
			COALESCE(s.imo_number, fc.imo_number),
			COALESCE(fc.voyage_number, v.voyage_number),
			COALESCE(fc.departure_port, v.departure_port),
			COALESCE(fc.arrival_port, v.arrival_port),
			COALESCE(fc.voyage_leg, v.leg_number),
			COALESCE(fc.voyage_type, v.voyage_type),
			fc.event, fc.consumption_date, fc.engine_type, fc.fuel_type, fc.fuel_category,
			fc.consumption_tonnes::float8, fc.energy_source_type,
			COALESCE(fc.energy_consumption_kwh, 0)::float8,
			fc.bunker_delivery_note, fc.fuel_supplier
		FROM fuel_consumption fc
		LEFT JOIN voyages v ON v.id = fc.voyage_id
		LEFT JOIN ships s ON s.id = v.ship_id`+where+`
		ORDER BY fc.consumption_date ASC, fc.created_at ASC`, args...)
	if err != nil {
		return nil, storageError("query ledger", err)
	}
	defer rows.Close()

	var out []ovd.Entry
	for rows.Next() {
		var (
			e                                     ovd.Entry
			voyageID                              pgtype.UUID
			imo, number, from, to, leg, vtype, ev pgtype.Text
			source, bdn, supplier                 pgtype.Text
			engine, fuel, category                string
			day                                   pgtype.Date
		)
		if err := rows.Scan(
			&voyageID, &imo, &number, &from, &to, &leg, &vtype,
			&ev, &day, &engine, &fuel, &category,
			&e.ConsumptionTonnes, &source, &e.EnergyKWh,
			&bdn, &supplier,
		); err != nil {
			return nil, storageError("scan ledger", err)
		}
		e.VoyageID = PgUUIDToString(voyageID)
		e.IMO = imo.String
		e.VoyageNumber = number.String
		e.DeparturePort = from.String
		e.ArrivalPort = to.String
		e.VoyageLeg = leg.String
		e.VoyageType = vtype.String
		e.Event = ev.String
		e.ConsumptionDate = day.Time
		e.EngineType = ovd.EngineType(engine)
		e.FuelType = ovd.FuelType(fuel)
		e.FuelCategory = ovd.FuelCategory(category)
		e.EnergySourceType = source.String
		e.BunkerDeliveryNote = bdn.String
		e.FuelSupplier = supplier.String
		out = append(out, e)
	}
	return out, storageError("query ledger", rows.Err())
}

const syncConfigColumns = `id, organization_id, config_name, enabled, sync_direction,
	schedule_frequency, cron_expression, vessel_filter, date_range_filter,
	auto_approve, notification_emails, notify_on_error, notify_on_success,
	retry_count, max_retries, last_sync_at, next_sync_at, created_by,
	created_at, updated_at`

// ListSyncConfigs returns configs newest first, optionally for one
// organization.
func (s *PostgresStore) ListSyncConfigs(ctx context.Context, orgID string) ([]SyncConfig, error) {
	wb := NewWhereBuilder()
	wb.Add("organization_id", orgID)
	where, args := wb.Build()
	return s.querySyncConfigs(ctx, "list sync configs",
		`SELECT `+syncConfigColumns+` FROM ovd_sync_config`+where+` ORDER BY created_at DESC`, args...)
}

// ListEnabledSyncConfigs returns every enabled config.
func (s *PostgresStore) ListEnabledSyncConfigs(ctx context.Context) ([]SyncConfig, error) {
	return s.querySyncConfigs(ctx, "list enabled sync configs",
		`SELECT `+syncConfigColumns+` FROM ovd_sync_config WHERE enabled ORDER BY created_at`)
}

// GetSyncConfig returns one config or a NOT_FOUND error.
func (s *PostgresStore) GetSyncConfig(ctx context.Context, id string) (*SyncConfig, error) {
	uid := ToPgUUID(id)
	if !uid.Valid {
		return nil, NewError(KindNotFound, "get sync config", "sync config not found")
	}
	cfg, err := scanSyncConfig(s.db.QueryRow(ctx,
		`SELECT `+syncConfigColumns+` FROM ovd_sync_config WHERE id = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(KindNotFound, "get sync config", "sync config not found")
	}
	if err != nil {
		return nil, storageError("get sync config", err)
	}
	return cfg, nil
}

// CreateSyncConfig inserts cfg and fills its generated columns.
func (s *PostgresStore) CreateSyncConfig(ctx context.Context, cfg *SyncConfig) error {
	vessels, dates, err := encodeConfigFilters(cfg)
	if err != nil {
		return err
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO ovd_sync_config (
			organization_id, config_name, enabled, sync_direction, schedule_frequency,
			cron_expression, vessel_filter, date_range_filter, auto_approve,
			notification_emails, notify_on_error, notify_on_success, max_retries, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, retry_count, created_at, updated_at`,
		ToPgText(cfg.OrganizationID), cfg.ConfigName, cfg.Enabled, string(cfg.SyncDirection), string(cfg.ScheduleFrequency),
		ToPgText(cfg.CronExpression), vessels, dates, cfg.AutoApprove,
		emails(cfg.NotificationEmails), cfg.NotifyOnError, cfg.NotifyOnSuccess, cfg.MaxRetries, ToPgText(cfg.CreatedBy),
	).Scan(scanUUID(&cfg.ID), &cfg.RetryCount, &cfg.CreatedAt, &cfg.UpdatedAt)
	return storageError("create sync config", err)
}

// UpdateSyncConfig writes every mutable column of cfg.
func (s *PostgresStore) UpdateSyncConfig(ctx context.Context, cfg *SyncConfig) error {
	vessels, dates, err := encodeConfigFilters(cfg)
	if err != nil {
		return err
	}
	err = s.db.QueryRow(ctx, `
		UPDATE ovd_sync_config
		SET config_name = $2,
			enabled = $3,
			sync_direction = $4,
			schedule_frequency = $5,
			cron_expression = $6,
			vessel_filter = $7,
			date_range_filter = $8,
			auto_approve = $9,
			notification_emails = $10,
			notify_on_error = $11,
			notify_on_success = $12,
			max_retries = $13,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		ToPgUUID(cfg.ID), cfg.ConfigName, cfg.Enabled, string(cfg.SyncDirection), string(cfg.ScheduleFrequency),
		ToPgText(cfg.CronExpression), vessels, dates, cfg.AutoApprove,
		emails(cfg.NotificationEmails), cfg.NotifyOnError, cfg.NotifyOnSuccess, cfg.MaxRetries,
	).Scan(&cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewError(KindNotFound, "update sync config", "sync config not found")
	}
	return storageError("update sync config", err)
}

// DeleteSyncConfig removes a config.
func (s *PostgresStore) DeleteSyncConfig(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM ovd_sync_config WHERE id = $1`, ToPgUUID(id))
	if err != nil {
		return storageError("delete sync config", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(KindNotFound, "delete sync config", "sync config not found")
	}
	return nil
}

// SaveRunState writes the scheduler transition in one statement. It may
// disable a config but never enables one.
func (s *PostgresStore) SaveRunState(ctx context.Context, id string, st RunState) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ovd_sync_config
		SET retry_count = $2,
			enabled = enabled AND $3,
			last_sync_at = COALESCE($4, last_sync_at),
			updated_at = NOW()
		WHERE id = $1`,
		ToPgUUID(id), st.RetryCount, st.Enabled, ToPgTimestamptz(st.LastSyncAt))
	return storageError("save run state", err)
}

// SetNextSyncAt records the estimated next run.
func (s *PostgresStore) SetNextSyncAt(ctx context.Context, id string, next time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE ovd_sync_config SET next_sync_at = $2 WHERE id = $1`,
		ToPgUUID(id), ToPgTimestamptz(&next))
	return storageError("set next sync at", err)
}

func (s *PostgresStore) querySyncConfigs(ctx context.Context, op, sql string, args ...any) ([]SyncConfig, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageError(op, err)
	}
	defer rows.Close()

	var out []SyncConfig
	for rows.Next() {
		cfg, err := scanSyncConfig(rows)
		if err != nil {
			return nil, storageError(op, err)
		}
		out = append(out, *cfg)
	}
	return out, storageError(op, rows.Err())
}

func scanSyncConfig(row pgx.Row) (*SyncConfig, error) {
	var (
		cfg                     SyncConfig
		orgID, cronExpr, author pgtype.Text
		direction, frequency    string
		vessels, dates          []byte
		lastSync, nextSync      pgtype.Timestamptz
	)
	err := row.Scan(
		scanUUID(&cfg.ID), &orgID, &cfg.ConfigName, &cfg.Enabled, &direction,
		&frequency, &cronExpr, &vessels, &dates,
		&cfg.AutoApprove, &cfg.NotificationEmails, &cfg.NotifyOnError, &cfg.NotifyOnSuccess,
		&cfg.RetryCount, &cfg.MaxRetries, &lastSync, &nextSync, &author,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.OrganizationID = orgID.String
	cfg.SyncDirection = ConfigDirection(direction)
	cfg.ScheduleFrequency = Frequency(frequency)
	cfg.CronExpression = cronExpr.String
	cfg.CreatedBy = author.String
	cfg.LastSyncAt = timePtr(lastSync)
	cfg.NextSyncAt = timePtr(nextSync)
	if len(vessels) > 0 {
		if err := json.Unmarshal(vessels, &cfg.VesselFilter); err != nil {
			return nil, fmt.Errorf("decode vessel_filter: %w", err)
		}
	}
	if len(dates) > 0 {
		if err := json.Unmarshal(dates, &cfg.DateRangeFilter); err != nil {
			return nil, fmt.Errorf("decode date_range_filter: %w", err)
		}
	}
	return &cfg, nil
}

func encodeConfigFilters(cfg *SyncConfig) (vessels, dates []byte, err error) {
	if len(cfg.VesselFilter) > 0 {
		if vessels, err = json.Marshal(cfg.VesselFilter); err != nil {
			return nil, nil, WrapError(KindValidation, "encode vessel_filter", err)
		}
	}
	if cfg.DateRangeFilter != nil {
		if dates, err = json.Marshal(cfg.DateRangeFilter); err != nil {
			return nil, nil, WrapError(KindValidation, "encode date_range_filter", err)
		}
	}
	return vessels, dates, nil
}

func emails(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func energyKWh(e ovd.Entry) any {
	if e.EnergySourceType == "" {
		return nil
	}
	return e.EnergyKWh
}

func nullableMillis(ms int64) pgtype.Int8 {
	return pgtype.Int8{Int64: ms, Valid: ms > 0}
}

// uuidString scans a UUID column into a string field.
type uuidString struct{ dst *string }

func scanUUID(dst *string) *uuidString { return &uuidString{dst: dst} }

func (u *uuidString) Scan(src any) error {
	var id pgtype.UUID
	if err := id.Scan(src); err != nil {
		return err
	}
	*u.dst = PgUUIDToString(id)
	return nil
}
