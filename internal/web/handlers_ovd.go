package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/google/uuid"
)

// uploadField is the multipart field carrying the OVD workbook.
const uploadField = "ovdFile"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var allowedUploadExt = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

// handleImport stages an uploaded workbook and imports it. The service
// removes the staged file once the import is done.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	const op = "import upload"

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, core.NewError(core.KindValidation, op, "file too large (max %d bytes)", maxSize))
			return
		}
		respondError(w, r, &core.Error{Kind: core.KindValidation, Op: op, Message: "invalid multipart form", Err: err})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		respondError(w, r, core.NewError(core.KindValidation, op, "no file provided"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExt[ext] {
		respondError(w, r, core.NewError(core.KindValidation, op, "unsupported file type %q", ext))
		return
	}

	path, err := s.stageUpload(file, ext)
	if err != nil {
		respondError(w, r, core.WrapError(core.KindInternal, op, err))
		return
	}

	result, err := s.service.ImportFile(r.Context(), actor, core.ImportRequest{
		FilePath: path,
		FileName: header.Filename,
		VoyageID: strings.TrimSpace(r.FormValue("voyageId")),
		ShipID:   strings.TrimSpace(r.FormValue("shipId")),
		SyncType: core.SyncManual,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondOK(w, r, http.StatusOK, "OVD file imported successfully", result)
}

// stageUpload copies the upload into the upload directory under a random
// name and returns its path.
func (s *Server) stageUpload(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.cfg.Upload.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(s.cfg.Upload.Dir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return path, nil
}

// handleExport renders an export and streams it back as an attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "export download"

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("startDate") == "" || q.Get("endDate") == "" {
		respondError(w, r, core.NewError(core.KindValidation, op, "startDate and endDate are required"))
		return
	}
	start, err := parseDate(op, "startDate", q.Get("startDate"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	end, err := parseDate(op, "endDate", q.Get("endDate"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var imos []string
	if v := strings.TrimSpace(q.Get("imo")); v != "" {
		imos = strings.Split(v, ",")
	}

	result, err := s.service.ExportFile(r.Context(), actor, core.ExportRequest{
		VoyageID:   strings.TrimSpace(q.Get("voyageId")),
		ShipID:     strings.TrimSpace(q.Get("shipId")),
		IMONumbers: imos,
		DateRange:  core.DateRange{Start: start, End: end},
		SyncType:   core.SyncManual,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.serveExport(w, r, result)
}

// serveExport writes the exported workbook and deletes it afterwards.
func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, result *core.ExportResult) {
	log := logging.WithFields(r.Context(), "file_name", result.FileName, "sync_history_id", result.SyncHistoryID)
	defer func() {
		if err := os.Remove(result.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove export", "error", err)
		}
	}()

	f, err := os.Open(result.FilePath)
	if err != nil {
		respondError(w, r, core.WrapError(core.KindInternal, "export download", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(result.FileSizeBytes, 10))
	w.Header().Set("X-Record-Count", strconv.Itoa(result.RecordsExported))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		log.Warn("export download interrupted", "error", err)
	}
}

type syncBody struct {
	Direction    core.Direction `json:"direction"`
	VoyageID     string         `json:"voyageId"`
	ShipID       string         `json:"shipId"`
	VesselFilter []string       `json:"vesselFilter"`
	DateRange    *struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"dateRange"`
}

// handleSync runs a manual sync.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	const op = "manual sync"

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body syncBody
	if err := decodeJSON(w, r, op, &body); err != nil {
		respondError(w, r, err)
		return
	}
	body.Direction = core.Direction(strings.ToUpper(strings.TrimSpace(string(body.Direction))))
	if !body.Direction.Valid() {
		respondError(w, r, core.NewError(core.KindValidation, op,
			"invalid direction %q: must be IMPORT, EXPORT or BIDIRECTIONAL", body.Direction))
		return
	}

	req := core.SyncRequest{
		Direction:    body.Direction,
		SyncType:     core.SyncManual,
		VoyageID:     strings.TrimSpace(body.VoyageID),
		ShipID:       strings.TrimSpace(body.ShipID),
		VesselFilter: body.VesselFilter,
	}
	if body.DateRange != nil {
		start, err := parseDate(op, "dateRange.startDate", body.DateRange.StartDate)
		if err != nil {
			respondError(w, r, err)
			return
		}
		end, err := parseDate(op, "dateRange.endDate", body.DateRange.EndDate)
		if err != nil {
			respondError(w, r, err)
			return
		}
		dr := core.DateRange{Start: start, End: end}
		if !dr.Valid() {
			respondError(w, r, core.NewError(core.KindValidation, op, "date range needs startDate <= endDate"))
			return
		}
		req.DateRange = &dr
	}

	result, err := s.service.RunSync(r.Context(), actor, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondOK(w, r, http.StatusOK, "Manual sync triggered successfully", result)
}

// handleSyncStatus returns recent sync history.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.GetSyncStatus(r.Context(), parseIntParam(r, "limit", core.DefaultStatusLimit))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, "Sync status retrieved successfully", rows)
}

// handleImportQueueStatus reports import slot usage.
func (s *Server) handleImportQueueStatus(w http.ResponseWriter, r *http.Request) {
	var status core.ImportLimiterStatus
	if l := s.service.Limiter(); l != nil {
		status = l.Status()
	}
	respondOK(w, r, http.StatusOK, "Import queue status retrieved successfully", status)
}
