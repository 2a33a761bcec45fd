package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/JonMunkholm/ovdsync/internal/ovd"
)

// ovdVersion is the OVD interface version written into export file names.
const ovdVersion = "3.10.1"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportFile renders the matching ledger rows as an OVD workbook in the
// export directory and records it. A range with no rows is NOT_FOUND and
// leaves no file or metadata behind.
func (s *Service) ExportFile(ctx context.Context, actor Actor, req ExportRequest) (*ExportResult, error) {
	const op = "export file"

	if req.SyncType == "" {
		req.SyncType = SyncManual
	}
	start := s.now()
	log := logging.FromContext(ctx).With("user_id", actor.ID)

	fail := func(err error) (*ExportResult, error) {
		log.Warn("export failed", "error", err)
		s.audit.Append(ctx, AuditRecord{
			Actor:        actor,
			Action:       ActionExportFile,
			EntityType:   EntityFile,
			Metadata:     exportAuditMetadata(req, "", 0),
			Result:       ResultFailed,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	if !req.DateRange.Valid() {
		return fail(NewError(KindValidation, op, "a valid date range (startDate <= endDate) is required"))
	}

	entries, err := s.store.QueryLedger(ctx, LedgerFilter{
		VoyageID:   req.VoyageID,
		ShipID:     req.ShipID,
		IMONumbers: req.IMONumbers,
		Start:      req.DateRange.Start,
		End:        req.DateRange.End,
	})
	if err != nil {
		return fail(storageError(op, err))
	}
	if len(entries) == 0 {
		return fail(NewError(KindNotFound, op, "no data found for the specified criteria"))
	}

	data, err := ovd.Render(entries)
	if err != nil {
		return fail(WrapError(KindInternal, op, err))
	}

	imo := entries[0].IMO
	fileName := exportFileName(imo, req.DateRange, s.now())
	path, err := writeExport(s.exportDir, fileName, data)
	if err != nil {
		return fail(WrapError(KindInternal, op, err))
	}

	meta := &FileMetadata{
		FileName:         fileName,
		FilePath:         path,
		FileSizeBytes:    int64(len(data)),
		FileType:         "xlsx",
		OperationType:    OpExport,
		UploadedBy:       actor.ID,
		VoyageID:         req.VoyageID,
		ShipID:           req.ShipID,
		IMONumber:        imo,
		RecordCount:      len(entries),
		DateRangeStart:   req.DateRange.Start.Format(dateLayout),
		DateRangeEnd:     req.DateRange.End.Format(dateLayout),
		ProcessingStatus: ProcessingCompleted,
	}
	end := s.now()
	hist := &SyncHistory{
		SyncType:         req.SyncType,
		Operation:        OpExport,
		Direction:        flowFor(OpExport),
		InitiatedBy:      actor.ID,
		SyncConfigID:     req.ConfigID,
		Status:           StatusSuccess,
		RecordsProcessed: len(entries),
		RecordsExported:  len(entries),
		ExecutionTimeMs:  since(start, end).Milliseconds(),
		CompletedAt:      &end,
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.CreateFileMetadata(ctx, meta); err != nil {
			return err
		}
		hist.FileMetadataID = meta.ID
		return tx.CreateSyncHistory(ctx, hist)
	})
	if err != nil {
		removeFile(ctx, path)
		return fail(storageError(op, err))
	}

	s.audit.Append(ctx, AuditRecord{
		Actor:      actor,
		Action:     ActionExportFile,
		EntityType: EntityFile,
		EntityID:   meta.ID,
		Metadata:   exportAuditMetadata(req, fileName, len(entries)),
		Result:     ResultSuccess,
	})

	log.Info("export completed",
		"file_name", fileName,
		"sync_history_id", hist.ID,
		"records_exported", len(entries),
		"duration_ms", hist.ExecutionTimeMs,
	)

	return &ExportResult{
		FileName:        fileName,
		FilePath:        path,
		RecordsExported: len(entries),
		FileSizeBytes:   int64(len(data)),
		SyncHistoryID:   hist.ID,
		FileMetadataID:  meta.ID,
	}, nil
}

// exportFileName builds OVD_<version>_<IMO>_<start>_<end>_<generated>.xlsx.
func exportFileName(imo string, r DateRange, generated time.Time) string {
	imo = unsafeNameChars.ReplaceAllString(imo, "")
	if imo == "" {
		imo = "UNKNOWN"
	}
	return fmt.Sprintf("OVD_%s_%s_%s_%s_%s.xlsx",
		ovdVersion, imo,
		r.Start.Format(dateLayout), r.End.Format(dateLayout),
		generated.Format(dateLayout))
}

// writeExport writes data to dir/name through a temp file so a partially
// written workbook is never visible under its final name.
func writeExport(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close export: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename export: %w", err)
	}
	return path, nil
}

func exportAuditMetadata(req ExportRequest, fileName string, n int) map[string]any {
	m := map[string]any{
		"voyage_id": req.VoyageID,
		"ship_id":   req.ShipID,
	}
	if !req.DateRange.Start.IsZero() {
		m["start_date"] = req.DateRange.Start.Format(dateLayout)
	}
	if !req.DateRange.End.IsZero() {
		m["end_date"] = req.DateRange.End.Format(dateLayout)
	}
	if fileName != "" {
		m["file_name"] = fileName
		m["record_count"] = n
	}
	return m
}
