package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/telemetry"
)

// StartRun запускает flow по имени.
// POST /api/v1/runs
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Flow == "" {
		BadRequest(w, "flow is required")
		return
	}

	logger := telemetry.FromContext(r.Context())

	run, err := h.runs.Start(r.Context(), req.Flow, domain.TriggerAPI)
	if HandleError(w, logger, err) {
		return
	}

	w.Header().Set("Location", "/api/v1/runs/"+run.ID.String())
	JSON(w, http.StatusAccepted, DataResponse{Data: RunFromDomain(run)})
}

// GetCurrentRun возвращает выполняющийся run.
// GET /api/v1/runs/current
func (h *Handler) GetCurrentRun(w http.ResponseWriter, r *http.Request) {
	run := h.runs.Current()
	if run == nil {
		NotFound(w, "no run in progress")
		return
	}
	Success(w, RunFromDomain(run))
}

// GetLastRun возвращает последний завершённый run.
// GET /api/v1/runs/last
func (h *Handler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	run := h.runs.Last()
	if run == nil {
		NotFound(w, "no finished runs")
		return
	}
	Success(w, RunFromDomain(run))
}

// GetRun возвращает run по ID (текущий или последний).
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.Get(id)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}
	Success(w, RunFromDomain(run))
}

// CancelRun запрашивает отмену run. Текущий шаг доходит до конца.
// POST /api/v1/runs/{id}/cancel
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if HandleError(w, telemetry.FromContext(r.Context()), h.runs.Cancel(id)) {
		return
	}

	run, err := h.runs.Get(id)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}
	JSON(w, http.StatusAccepted, DataResponse{Data: RunFromDomain(run)})
}

// Health сообщает, что runner жив.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{Status: "ok", Busy: h.runs.Busy()})
}
