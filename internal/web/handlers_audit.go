package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/go-chi/chi/v5"
)

var entityTypes = map[core.EntityType]bool{
	core.EntityFile:          true,
	core.EntitySyncConfig:    true,
	core.EntitySyncOperation: true,
	core.EntityFuelRecord:    true,
}

// handleAuditLog returns the global activity feed, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	const op = "audit log"
	q := r.URL.Query()

	filter := core.RecentFilter{
		ActionType: core.AuditAction(strings.ToUpper(strings.TrimSpace(q.Get("actionType")))),
		Result:     core.AuditResult(strings.ToUpper(strings.TrimSpace(q.Get("result")))),
		Limit:      parseIntParam(r, "limit", core.DefaultRecentLimit),
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
	filter.StartTime = start
	if !end.IsZero() {
		// The end date is inclusive.
		filter.EndTime = end.Add(24*time.Hour - time.Nanosecond)
	}

	entries, err := s.audit.Recent(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, "Audit log retrieved successfully", entries)
}

// handleAuditByEntity returns the history of one entity.
func (s *Server) handleAuditByEntity(w http.ResponseWriter, r *http.Request) {
	entityType := core.EntityType(strings.ToUpper(chi.URLParam(r, "entityType")))
	if !entityTypes[entityType] {
		respondError(w, r, core.NewError(core.KindValidation, "audit by entity", "unknown entity type %q", entityType))
		return
	}

	entries, err := s.audit.ByEntity(r.Context(), entityType, chi.URLParam(r, "entityId"),
		parseIntParam(r, "limit", core.DefaultAuditLimit))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, "Audit log retrieved successfully", entries)
}

// handleAuditByActor returns what one user did.
func (s *Server) handleAuditByActor(w http.ResponseWriter, r *http.Request) {
	entries, err := s.audit.ByActor(r.Context(), chi.URLParam(r, "userId"),
		parseIntParam(r, "limit", core.DefaultAuditLimit))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, "Audit log retrieved successfully", entries)
}
