package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/ovdsync/internal/logging"
)

// RunSync performs one sync run: export first, then import, according to
// the direction. It records a parent SyncHistory row for the run and stops
// at the first failing step.
func (s *Service) RunSync(ctx context.Context, actor Actor, req SyncRequest) (*SyncRunResult, error) {
	const op = "run sync"

	if !req.Direction.Valid() {
		return nil, NewError(KindValidation, op, "invalid direction %q", req.Direction)
	}
	if req.SyncType == "" {
		req.SyncType = SyncManual
	}

	operation := Operation(req.Direction)
	start := s.now()
	log := logging.FromContext(ctx).With("direction", req.Direction, "sync_type", req.SyncType, "config_id", req.ConfigID)

	parent := &SyncHistory{
		SyncType:     req.SyncType,
		Operation:    operation,
		Direction:    flowFor(operation),
		InitiatedBy:  actor.ID,
		SyncConfigID: req.ConfigID,
		Status:       StatusInProgress,
	}
	if err := s.store.CreateSyncHistory(ctx, parent); err != nil {
		err = storageError(op, err)
		s.auditSync(ctx, actor, req, "", ResultFailed, err, nil)
		return nil, err
	}

	result := &SyncRunResult{SyncHistoryID: parent.ID}
	var (
		runErr    error
		completed SyncCompletion
	)

	if req.Direction.exports() {
		window := s.exportRange(req)
		exp, err := s.ExportFile(ctx, actor, ExportRequest{
			VoyageID:   req.VoyageID,
			ShipID:     req.ShipID,
			IMONumbers: req.VesselFilter,
			DateRange:  window,
			SyncType:   req.SyncType,
			ConfigID:   req.ConfigID,
		})
		if err != nil {
			runErr = err
		} else {
			result.Export = exp
			completed.RecordsExported = exp.RecordsExported
			completed.RecordsProcessed += exp.RecordsExported
		}
	}

	if runErr == nil && req.Direction.imports() {
		batch, err := s.importInbox(ctx, actor, req)
		if batch != nil {
			result.Import = batch
			completed.RecordsProcessed += batch.RecordsProcessed
			completed.RecordsImported = batch.RecordsImported
			completed.RecordsFailed = batch.RecordsFailed
		}
		if err != nil {
			runErr = err
		}
	}

	end := s.now()
	completed.CompletedAt = end
	completed.ExecutionTime = since(start, end)
	switch {
	case runErr != nil:
		completed.Status = StatusFailed
		completed.ErrorLog = runErr.Error()
	case result.Import != nil && (result.Import.RecordsFailed > 0 || result.Import.FilesFailed > 0):
		completed.Status = StatusPartialSuccess
		completed.ErrorLog = joinErrors(result.Import.Errors)
	default:
		completed.Status = StatusSuccess
	}

	if err := s.store.FinishSyncHistory(ctx, parent.ID, completed); err != nil {
		log.Error("failed to complete sync history", "sync_history_id", parent.ID, "error", err)
		if runErr == nil {
			runErr = storageError(op, err)
			completed.Status = StatusFailed
		}
	}

	result.Status = completed.Status
	result.Duration = completed.ExecutionTime
	result.DurationMs = completed.ExecutionTime.Milliseconds()

	auditResult := ResultSuccess
	switch completed.Status {
	case StatusFailed:
		auditResult = ResultFailed
	case StatusPartialSuccess:
		auditResult = ResultPartial
	}
	s.auditSync(ctx, actor, req, parent.ID, auditResult, runErr, result)

	if runErr != nil {
		log.Warn("sync run failed", "sync_history_id", parent.ID, "error", runErr)
		return result, runErr
	}

	log.Info("sync run completed",
		"sync_history_id", parent.ID,
		"status", result.Status,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// exportRange picks the run's export window: the request range, then the
// config filter's range, then the default window ending today.
func (s *Service) exportRange(req SyncRequest) DateRange {
	if req.DateRange != nil && req.DateRange.Valid() {
		return *req.DateRange
	}
	return req.DateFilter.Window(s.now(), s.exportWindow)
}

// importInbox imports every workbook waiting in the inbox directory, oldest
// name first. Unreadable workbooks are counted and skipped; a storage
// failure stops the batch.
func (s *Service) importInbox(ctx context.Context, actor Actor, req SyncRequest) (*BatchImportResult, error) {
	batch := &BatchImportResult{}
	if s.inboxDir == "" {
		return batch, nil
	}

	files, err := inboxFiles(s.inboxDir)
	if err != nil {
		return batch, WrapError(KindConnectivity, "read inbox", err)
	}

	for _, path := range files {
		res, err := s.ImportFile(ctx, actor, ImportRequest{
			FilePath: path,
			FileName: filepath.Base(path),
			VoyageID: req.VoyageID,
			ShipID:   req.ShipID,
			SyncType: req.SyncType,
			ConfigID: req.ConfigID,
		})
		batch.FilesProcessed++
		if err != nil {
			if IsKind(err, KindFormat) {
				batch.FilesFailed++
				batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
				continue
			}
			return batch, err
		}
		batch.RecordsProcessed += res.RecordsProcessed
		batch.RecordsImported += res.RecordsImported
		batch.RecordsFailed += res.RecordsFailed
		for _, e := range res.Errors {
			batch.Errors = append(batch.Errors, filepath.Base(path)+": "+e)
		}
	}
	return batch, nil
}

// inboxFiles lists .xlsx and .xls files in dir, sorted by name. A missing
// directory has no files.
func inboxFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".xlsx", ".xls":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Service) auditSync(ctx context.Context, actor Actor, req SyncRequest, historyID string, result AuditResult, runErr error, run *SyncRunResult) {
	action := ActionTriggerManualSync
	if req.SyncType == SyncAutomated {
		action = ActionAutomatedSync
	}

	meta := map[string]any{
		"direction": req.Direction,
		"config_id": req.ConfigID,
		"voyage_id": req.VoyageID,
	}
	if run != nil {
		meta["status"] = run.Status
		meta["execution_time_ms"] = run.DurationMs
		if run.Export != nil {
			meta["records_exported"] = run.Export.RecordsExported
		}
		if run.Import != nil {
			meta["files_processed"] = run.Import.FilesProcessed
			meta["records_imported"] = run.Import.RecordsImported
			meta["records_failed"] = run.Import.RecordsFailed
		}
	}

	rec := AuditRecord{
		Actor:      actor,
		Action:     action,
		EntityType: EntitySyncOperation,
		EntityID:   historyID,
		Metadata:   meta,
		Result:     result,
	}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}
	s.audit.Append(ctx, rec)
}
