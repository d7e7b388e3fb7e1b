package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/engine"
	"github.com/shaiso/avantix/internal/loader"
	"github.com/shaiso/avantix/internal/repo"
	"github.com/shaiso/avantix/internal/telemetry"
)

// ListFlows возвращает flow из каталога и из хранилища.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	logger := telemetry.FromContext(r.Context())

	resp := FlowsResponse{Files: []loader.FlowInfo{}}
	if h.flows != nil {
		files, err := h.flows.List()
		if HandleError(w, logger, err) {
			return
		}
		resp.Files = files
	}

	if h.store != nil {
		stored, err := h.store.List(r.Context())
		if HandleError(w, logger, err) {
			return
		}
		resp.Stored = stored
	}

	Success(w, resp)
}

// PushFlow сохраняет новую версию flow в хранилище.
// POST /api/v1/flows
//
// Flow с неизвестными action или некорректной политикой не сохраняется.
func (h *Handler) PushFlow(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		Unavailable(w, "flow store is not configured")
		return
	}

	var spec domain.FlowSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if spec.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	logger := telemetry.FromContext(r.Context())

	if HandleError(w, logger, engine.Validate(&spec)) {
		return
	}
	if h.registry != nil {
		if HandleError(w, logger, engine.CheckActions(&spec, h.registry)) {
			return
		}
	}

	version, err := h.store.Save(r.Context(), spec)
	if HandleError(w, logger, err) {
		return
	}

	logger.Info("flow version saved", "flow", version.Name, "version", version.Version)
	Created(w, FlowVersionFromDomain(version))
}

// GetFlow возвращает определение flow.
// GET /api/v1/flows/{name}?version=N
//
// Без version сначала ищет последнюю версию в хранилище, затем файл
// в каталоге flows. С version — только хранилище.
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	logger := telemetry.FromContext(r.Context())

	if v := r.URL.Query().Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil || version < 1 {
			BadRequest(w, "version must be a positive integer")
			return
		}
		if h.store == nil {
			Unavailable(w, "flow store is not configured")
			return
		}
		fv, err := h.store.GetVersion(r.Context(), name, version)
		if HandleError(w, logger, err) {
			return
		}
		Success(w, FlowVersionFromDomain(fv))
		return
	}

	if h.store != nil {
		version, err := h.store.GetLatest(r.Context(), name)
		if err == nil {
			Success(w, FlowVersionFromDomain(version))
			return
		}
		if !errors.Is(err, repo.ErrNotFound) {
			InternalError(w, logger, err)
			return
		}
	}

	if h.flows == nil {
		NotFound(w, "flow not found")
		return
	}
	spec, err := h.flows.Load(name)
	if HandleError(w, logger, err) {
		return
	}
	Success(w, FlowVersionResponse{Name: name, Source: FlowSourceFile, Spec: *spec})
}

// DeleteFlow удаляет flow со всеми версиями из хранилища.
// DELETE /api/v1/flows/{name}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		Unavailable(w, "flow store is not configured")
		return
	}

	if HandleError(w, telemetry.FromContext(r.Context()), h.store.Delete(r.Context(), r.PathValue("name"))) {
		return
	}
	NoContent(w)
}

// ListActions возвращает идентификаторы зарегистрированных action.
// GET /api/v1/actions
func (h *Handler) ListActions(w http.ResponseWriter, _ *http.Request) {
	ids := []string{}
	if h.registry != nil {
		ids = h.registry.IDs()
	}
	Success(w, ActionsResponse{Actions: ids})
}
