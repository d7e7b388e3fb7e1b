package api

import (
	"encoding/json"
	"net/http"
)

// ListSchedules возвращает расписания планировщика.
// GET /api/v1/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, _ *http.Request) {
	if h.schedules == nil {
		List(w, []ScheduleResponse{}, 0)
		return
	}

	schedules := h.schedules.Schedules()
	result := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		result[i] = ScheduleFromDomain(&schedules[i])
	}

	List(w, result, len(result))
}

// SetScheduleEnabled включает или выключает расписание.
// PUT /api/v1/schedules/{name}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		Unavailable(w, "scheduler is not configured")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		BadRequest(w, "enabled is required")
		return
	}

	name := r.PathValue("name")
	if !h.schedules.SetEnabled(name, *req.Enabled) {
		NotFound(w, "schedule not found")
		return
	}

	for _, s := range h.schedules.Schedules() {
		if s.Name == name {
			Success(w, ScheduleFromDomain(&s))
			return
		}
	}
	NotFound(w, "schedule not found")
}
