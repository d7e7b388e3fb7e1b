package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(h.logger),
		Recovery(),
		Logging(),
	)

	// Runs
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.StartRun)))
	mux.Handle("GET /api/v1/runs/current", chain(http.HandlerFunc(h.GetCurrentRun)))
	mux.Handle("GET /api/v1/runs/last", chain(http.HandlerFunc(h.GetLastRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", chain(http.HandlerFunc(h.CancelRun)))

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.PushFlow)))
	mux.Handle("GET /api/v1/flows/{name}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("DELETE /api/v1/flows/{name}", chain(http.HandlerFunc(h.DeleteFlow)))

	// Actions
	mux.Handle("GET /api/v1/actions", chain(http.HandlerFunc(h.ListActions)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("PUT /api/v1/schedules/{name}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	mux.HandleFunc("GET /healthz", h.Health)
}
