package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shiftplane/internal/canonical"
	"shiftplane/internal/store"
	"shiftplane/pkg/api"
)

// CreateScenario handles POST /api/v1/scenarios.
// The payload is stored in canonical form; submitting the same content for
// the same unit again returns the existing scenario with status reset to ready.
func (h *Handlers) CreateScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UnitID <= 0 {
		h.httpError(w, "unit_id is required", http.StatusBadRequest)
		return
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		h.httpError(w, "source is required", http.StatusBadRequest)
		return
	}

	digest, canon, err := canonical.Digest(req.Payload)
	if err != nil {
		h.httpErrorDetails(w, "Invalid payload", http.StatusBadRequest, err)
		return
	}

	sc := &store.Scenario{
		UnitID:    req.UnitID,
		Source:    source,
		InputHash: digest,
		Payload:   canon,
		CreatedBy: req.CreatedBy,
	}
	if err := h.store.UpsertScenario(ctx, sc); err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			h.httpErrorDetails(w, "Unknown unit", http.StatusBadRequest, err)
			return
		}
		h.log(r).Error("failed to store scenario", "unit_id", req.UnitID, "error", err)
		h.httpError(w, "Failed to store scenario", http.StatusInternalServerError)
		return
	}

	h.log(r).Info("scenario stored", "scenario_id", sc.ID, "unit_id", sc.UnitID, "input_hash", sc.InputHash)
	h.respondJson(w, http.StatusOK, toScenarioResponse(sc))
}

// ListScenarios handles GET /api/v1/scenarios?unit_id=.
func (h *Handlers) ListScenarios(w http.ResponseWriter, r *http.Request) {
	unitID, ok := queryID(r, "unit_id")
	if !ok {
		h.httpError(w, "Invalid unit_id", http.StatusBadRequest)
		return
	}

	scenarios, err := h.store.ListScenarios(r.Context(), unitID)
	if err != nil {
		h.log(r).Error("failed to list scenarios", "error", err)
		h.httpError(w, "Failed to list scenarios", http.StatusInternalServerError)
		return
	}

	resp := make([]api.ScenarioResponse, 0, len(scenarios))
	for i := range scenarios {
		resp = append(resp, toScenarioResponse(&scenarios[i]))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetScenario handles GET /api/v1/scenarios/{id}.
func (h *Handlers) GetScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.httpError(w, "Invalid scenario id", http.StatusBadRequest)
		return
	}

	sc, err := h.store.GetScenario(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Scenario not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log(r).Error("failed to load scenario", "scenario_id", id, "error", err)
		h.httpError(w, "Failed to load scenario", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, toScenarioResponse(sc))
}

// DeleteScenario handles DELETE /api/v1/scenarios/{id}.
// Runs, assignments and KPIs of the scenario are removed with it.
func (h *Handlers) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.httpError(w, "Invalid scenario id", http.StatusBadRequest)
		return
	}

	deleted, err := h.store.DeleteScenario(r.Context(), id)
	if err != nil {
		h.log(r).Error("failed to delete scenario", "scenario_id", id, "error", err)
		h.httpError(w, "Failed to delete scenario", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.DeleteResponse{Deleted: deleted})
}

func toScenarioResponse(sc *store.Scenario) api.ScenarioResponse {
	return api.ScenarioResponse{
		ID:        sc.ID,
		UnitID:    sc.UnitID,
		Source:    sc.Source,
		InputHash: sc.InputHash,
		Payload:   sc.Payload,
		Status:    string(sc.Status),
		CreatedBy: sc.CreatedBy,
		CreatedAt: sc.CreatedAt,
	}
}
