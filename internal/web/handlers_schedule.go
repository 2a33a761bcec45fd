package web

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/JonMunkholm/ovdsync/internal/scheduler"
	"github.com/go-chi/chi/v5"
)

// scheduleView is a stored config plus the state of its timer.
type scheduleView struct {
	core.SyncConfig
	SchedulerState scheduler.State `json:"scheduler_state"`
}

func (s *Server) view(cfg core.SyncConfig) scheduleView {
	return scheduleView{SyncConfig: cfg, SchedulerState: s.sched.State(cfg.ID)}
}

// handleListSchedules lists the caller organization's sync configs.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	var orgID string
	if actor, ok := core.ActorFromContext(r.Context()); ok {
		orgID = actor.OrganizationID
	}

	cfgs, err := s.service.GetSyncConfig(r.Context(), orgID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]scheduleView, 0, len(cfgs))
	for _, cfg := range cfgs {
		views = append(views, s.view(cfg))
	}
	respondOK(w, r, http.StatusOK, "Sync schedule retrieved successfully", views)
}

// handleCreateSchedule stores a config and starts its timer when enabled.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var in core.SyncConfigInput
	if err := decodeJSON(w, r, "create sync config", &in); err != nil {
		respondError(w, r, err)
		return
	}

	cfg, err := s.service.CreateSyncConfig(r.Context(), actor, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.reschedule(r, *cfg)

	respondOK(w, r, http.StatusCreated, "Sync schedule configured successfully", s.view(*cfg))
}

type updateScheduleResponse struct {
	Config        scheduleView `json:"config"`
	UpdatedFields []string     `json:"updatedFields"`
}

// handleUpdateSchedule applies a partial update. Any applied change
// reschedules the config; disabling it stops the timer.
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var patch map[string]json.RawMessage
	if err := decodeJSON(w, r, "update sync config", &patch); err != nil {
		respondError(w, r, err)
		return
	}

	cfg, applied, err := s.service.UpdateSyncConfig(r.Context(), actor, id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.reschedule(r, *cfg)

	respondOK(w, r, http.StatusOK, "Sync schedule updated successfully", updateScheduleResponse{
		Config:        s.view(*cfg),
		UpdatedFields: applied,
	})
}

// handleDeleteSchedule removes a config and its timer.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	cfg, err := s.service.DeleteSyncConfig(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.sched.StopSync(id)

	respondOK(w, r, http.StatusOK, "Sync schedule deleted successfully", cfg)
}

// reschedule brings the timer of cfg in line with the stored config. The
// config has already been validated and saved, so a failure here is logged
// rather than returned.
func (s *Server) reschedule(r *http.Request, cfg core.SyncConfig) {
	if err := s.sched.ScheduleSync(r.Context(), cfg); err != nil {
		logging.FromContext(r.Context()).Warn("failed to schedule sync config",
			"config_id", cfg.ID,
			"error", err,
		)
	}
}
