package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/JonMunkholm/ovdsync/internal/ovd"
)

// maxErrorLog caps the joined error text stored on history and file rows.
const maxErrorLog = 8000

// ImportFile parses an OVD workbook and writes its records to the ledger in
// one transaction. Records that fail validation, mapping or insertion are
// recorded as validation errors and skipped; only a storage failure aborts
// the import. The source file is always removed.
func (s *Service) ImportFile(ctx context.Context, actor Actor, req ImportRequest) (*ImportResult, error) {
	const op = "import file"
	defer removeFile(ctx, req.FilePath)

	release, err := s.acquireImport(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if req.SyncType == "" {
		req.SyncType = SyncManual
	}
	if req.FileName == "" {
		req.FileName = filepath.Base(req.FilePath)
	}

	start := s.now()
	log := logging.FromContext(ctx).With("file_name", req.FileName, "user_id", actor.ID)

	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		err = &ovd.FormatError{Reason: "cannot read file", Err: err}
		s.recordFormatFailure(ctx, actor, req, 0, err)
		return nil, WrapError(KindFormat, op, err)
	}

	parsed, err := ovd.Parse(data)
	if err != nil {
		log.Warn("import rejected", "error", err)
		s.recordFormatFailure(ctx, actor, req, int64(len(data)), err)
		return nil, WrapError(KindFormat, op, err)
	}

	records := parsed.Records
	meta := &FileMetadata{
		FileName:         req.FileName,
		FilePath:         req.FilePath,
		FileSizeBytes:    int64(len(data)),
		FileType:         fileType(req.FileName),
		OperationType:    OpImport,
		UploadedBy:       actor.ID,
		VoyageID:         req.VoyageID,
		ShipID:           req.ShipID,
		IMONumber:        firstVessel(parsed.Metadata),
		RecordCount:      len(records),
		DateRangeStart:   parsed.Metadata.DateRange.Start,
		DateRangeEnd:     parsed.Metadata.DateRange.End,
		ProcessingStatus: ProcessingInProgress,
	}
	hist := &SyncHistory{
		SyncType:         req.SyncType,
		Operation:        OpImport,
		Direction:        flowFor(OpImport),
		InitiatedBy:      actor.ID,
		SyncConfigID:     req.ConfigID,
		Status:           StatusInProgress,
		RecordsProcessed: len(records),
	}

	var result *ImportResult
	err = s.store.InTx(ctx, func(tx Store) error {
		result = &ImportResult{RecordsProcessed: len(records), Errors: []string{}, Metadata: parsed.Metadata}

		if err := tx.CreateFileMetadata(ctx, meta); err != nil {
			return err
		}
		hist.FileMetadataID = meta.ID
		if err := tx.CreateSyncHistory(ctx, hist); err != nil {
			return err
		}

		for _, rec := range records {
			if err := s.importRecord(ctx, tx, rec, req.VoyageID, hist.ID, meta.ID, result); err != nil {
				return err
			}
		}

		status := StatusSuccess
		fileStatus := ProcessingCompleted
		errorLog := ""
		if result.RecordsFailed > 0 {
			status = StatusPartialSuccess
			fileStatus = ProcessingFailed
			errorLog = joinErrors(result.Errors)
		}

		end := s.now()
		if err := tx.FinishSyncHistory(ctx, hist.ID, SyncCompletion{
			Status:           status,
			RecordsProcessed: result.RecordsProcessed,
			RecordsImported:  result.RecordsImported,
			RecordsFailed:    result.RecordsFailed,
			ErrorLog:         errorLog,
			ExecutionTime:    since(start, end),
			CompletedAt:      end,
		}); err != nil {
			return err
		}
		hist.Status = status
		return tx.FinishFileMetadata(ctx, meta.ID, fileStatus, errorLog)
	})
	if err != nil {
		err = storageError(op, err)
		log.Error("import failed", "error", err)
		s.audit.Append(ctx, AuditRecord{
			Actor:        actor,
			Action:       ActionImportFile,
			EntityType:   EntityFile,
			EntityID:     req.FileName,
			Metadata:     map[string]any{"file_name": req.FileName, "records_processed": len(records)},
			Result:       ResultFailed,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	result.SyncHistoryID = hist.ID
	result.FileMetadataID = meta.ID

	auditResult := ResultSuccess
	if result.RecordsFailed > 0 {
		auditResult = ResultPartial
	}
	s.audit.Append(ctx, AuditRecord{
		Actor:      actor,
		Action:     ActionImportFile,
		EntityType: EntityFile,
		EntityID:   meta.ID,
		Metadata: map[string]any{
			"file_name":         req.FileName,
			"sync_history_id":   hist.ID,
			"records_processed": result.RecordsProcessed,
			"records_imported":  result.RecordsImported,
			"records_failed":    result.RecordsFailed,
			"vessels":           parsed.Metadata.Vessels,
		},
		Result: auditResult,
	})

	log.Info("import completed",
		"sync_history_id", hist.ID,
		"status", hist.Status,
		"records_processed", result.RecordsProcessed,
		"records_imported", result.RecordsImported,
		"records_failed", result.RecordsFailed,
		"duration_ms", since(start, s.now()).Milliseconds(),
	)
	return result, nil
}

// importRecord maps and inserts one record. Row-level failures are written
// as validation errors and counted; the returned error aborts the import.
func (s *Service) importRecord(ctx context.Context, tx Store, rec ovd.Record, voyageRef, historyID, fileID string, result *ImportResult) error {
	reject := func(field, errType, msg string) error {
		result.RecordsFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rec.Row, msg))
		return tx.InsertValidationError(ctx, ValidationErrorRow{
			SyncHistoryID:  historyID,
			FileMetadataID: fileID,
			RowNumber:      rec.Row,
			FieldName:      field,
			ErrorType:      errType,
			ErrorMessage:   msg,
			Severity:       "ERROR",
		})
	}

	if problems := ovd.ValidateRecord(rec); len(problems) > 0 {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.Message
		}
		return reject(problems[0].Field, ErrorTypeMissingField, strings.Join(msgs, "; "))
	}

	entries, err := ovd.ToEntries(rec, voyageRef)
	if err != nil {
		var fieldErr *ovd.FieldError
		if errors.As(err, &fieldErr) {
			return reject(fieldErr.Field, ErrorTypeInvalidValue, err.Error())
		}
		return err
	}

	if err := tx.InsertLedgerEntries(ctx, entries); err != nil {
		if errors.Is(err, ErrRowRejected) {
			return reject("", ErrorTypeRejected, err.Error())
		}
		return err
	}

	result.RecordsImported++
	result.EntriesCreated += len(entries)
	return nil
}

// recordFormatFailure writes a FAILED file and history pair for a workbook
// that could not be parsed, then audits the failure. Storage errors here are
// only logged; the caller returns the format error either way.
func (s *Service) recordFormatFailure(ctx context.Context, actor Actor, req ImportRequest, size int64, cause error) {
	log := logging.FromContext(ctx)
	now := s.now()

	meta := &FileMetadata{
		FileName:         req.FileName,
		FilePath:         req.FilePath,
		FileSizeBytes:    size,
		FileType:         fileType(req.FileName),
		OperationType:    OpImport,
		UploadedBy:       actor.ID,
		VoyageID:         req.VoyageID,
		ShipID:           req.ShipID,
		ProcessingStatus: ProcessingFailed,
		ErrorMessage:     cause.Error(),
	}
	if err := s.store.CreateFileMetadata(ctx, meta); err != nil {
		log.Error("failed to record rejected file", "file_name", req.FileName, "error", err)
	}

	hist := &SyncHistory{
		SyncType:       req.SyncType,
		Operation:      OpImport,
		Direction:      flowFor(OpImport),
		InitiatedBy:    actor.ID,
		SyncConfigID:   req.ConfigID,
		FileMetadataID: meta.ID,
		Status:         StatusFailed,
		ErrorLog:       cause.Error(),
		CompletedAt:    &now,
	}
	if err := s.store.CreateSyncHistory(ctx, hist); err != nil {
		log.Error("failed to record rejected import", "file_name", req.FileName, "error", err)
	}

	entityID := meta.ID
	if entityID == "" {
		entityID = req.FileName
	}
	s.audit.Append(ctx, AuditRecord{
		Actor:        actor,
		Action:       ActionImportFile,
		EntityType:   EntityFile,
		EntityID:     entityID,
		Metadata:     map[string]any{"file_name": req.FileName, "sync_history_id": hist.ID},
		Result:       ResultFailed,
		ErrorMessage: cause.Error(),
	})
}

// fileType returns the lowercased extension without its dot.
func fileType(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

func firstVessel(m ovd.Metadata) string {
	if len(m.Vessels) == 0 {
		return ""
	}
	return m.Vessels[0]
}

// joinErrors joins errs one per line, cut to maxErrorLog bytes on a rune
// boundary. TEXT columns reject invalid UTF-8.
func joinErrors(errs []string) string {
	s := strings.Join(errs, "\n")
	if len(s) <= maxErrorLog {
		return s
	}
	cut := maxErrorLog
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
