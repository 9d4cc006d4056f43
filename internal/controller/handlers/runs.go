package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"shiftplane/internal/orchestrator"
	"shiftplane/internal/solver"
	"shiftplane/internal/store"
	"shiftplane/pkg/api"
)

// CreateRun handles POST /api/v1/solver-runs.
// The run executes synchronously; the response carries its final state.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ScenarioID <= 0 || req.PolicySetID <= 0 {
		h.httpError(w, "scenario_id and policy_set_id are required", http.StatusBadRequest)
		return
	}
	if req.Workers != nil && *req.Workers <= 0 {
		h.httpError(w, "workers must be positive", http.StatusBadRequest)
		return
	}

	run, err := h.runs.StartRun(ctx, orchestrator.StartRunRequest{
		ScenarioID:  req.ScenarioID,
		PolicySetID: req.PolicySetID,
		Seed:        req.Seed,
		Workers:     req.Workers,
		CodeVersion: req.CodeVersion,
	})
	if err != nil {
		h.runError(w, r, err)
		return
	}

	h.respondJson(w, http.StatusOK, h.toRunResponse(run))
}

func (h *Handlers) runError(w http.ResponseWriter, r *http.Request, err error) {
	var resErr *orchestrator.ResolutionError
	switch {
	case errors.Is(err, orchestrator.ErrScenarioNotFound):
		h.httpError(w, "Scenario not found", http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidReference):
		h.httpErrorDetails(w, "Unknown policy set", http.StatusBadRequest, err)
	case errors.As(err, &resErr):
		h.httpError(w, resErr.Error(), http.StatusBadRequest)
	case errors.Is(err, solver.ErrInvocation):
		h.httpErrorDetails(w, "Solver invocation failed", http.StatusBadGateway, err)
	default:
		h.log(r).Error("solver run failed", "error", err)
		h.httpError(w, "Failed to execute solver run", http.StatusInternalServerError)
	}
}

// ListRuns handles GET /api/v1/solver-runs?scenario_id=.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	scenarioID, ok := queryID(r, "scenario_id")
	if !ok {
		h.httpError(w, "Invalid scenario_id", http.StatusBadRequest)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), scenarioID)
	if err != nil {
		h.log(r).Error("failed to list runs", "error", err)
		h.httpError(w, "Failed to list solver runs", http.StatusInternalServerError)
		return
	}

	resp := make([]api.SolverRunResponse, 0, len(runs))
	for i := range runs {
		resp = append(resp, h.toRunResponse(&runs[i]))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetRun handles GET /api/v1/solver-runs/{id}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.httpError(w, "Invalid solver run id", http.StatusBadRequest)
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Solver run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log(r).Error("failed to load run", "run_id", id, "error", err)
		h.httpError(w, "Failed to load solver run", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, h.toRunResponse(run))
}

func (h *Handlers) toRunResponse(run *store.SolverRun) api.SolverRunResponse {
	resp := api.SolverRunResponse{
		ID:          run.ID,
		ScenarioID:  run.ScenarioID,
		PolicySetID: run.PolicySetID,
		Status:      string(run.Status),
		Phase:       string(run.Phase),
		Attempt:     run.Attempt,
		Seed:        run.Seed,
		Workers:     run.Workers,
		WallTimeSec: run.WallTimeSec,
		CodeVersion: run.CodeVersion,
		LogsURL:     run.LogsURL,
		Error:       run.ErrorMessage,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	if h.ingestURL != nil {
		resp.IngestURL = h.ingestURL(run.ID)
	}
	return resp
}
