package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"shiftplane/internal/orchestrator"
	"shiftplane/internal/store"
	"shiftplane/pkg/api"
)

// IngestResult handles POST /api/v1/solver-runs/{id}/ingest-result.
// It writes the run status, assignments and KPI in one transaction.
func (h *Handlers) IngestResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, ok := pathID(r, "id")
	if !ok {
		h.httpError(w, "Invalid solver run id", http.StatusBadRequest)
		return
	}

	var req api.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := toIngestResult(runID, &req)
	if err != nil {
		h.httpError(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := h.runs.Ingest(ctx, result)
	switch {
	case errors.Is(err, orchestrator.ErrRunNotFound):
		h.httpError(w, "Solver run not found", http.StatusNotFound)
		return
	case errors.Is(err, orchestrator.ErrInvalidResult):
		h.httpError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrInvalidReference):
		h.httpErrorDetails(w, "Unknown shift or staff", http.StatusBadRequest, err)
		return
	case err != nil:
		h.log(r).Error("ingestion failed", "run_id", runID, "error", err)
		h.httpError(w, "Failed to ingest result", http.StatusInternalServerError)
		return
	}

	h.log(r).Info("result ingested",
		"run_id", runID,
		"status", result.Status,
		"assignments_inserted", outcome.AssignmentsInserted,
	)
	h.respondJson(w, http.StatusOK, api.IngestResponse{
		OK:                  true,
		SolverRunID:         runID,
		Updated:             true,
		AssignmentsInserted: outcome.AssignmentsInserted,
		KpiUpserted:         outcome.KpiUpserted,
	})
}

func toIngestResult(runID int64, req *api.IngestRequest) (*store.IngestResult, error) {
	result := &store.IngestResult{
		RunID:       runID,
		Status:      store.RunStatus(req.Status),
		WallTimeSec: req.WallTimeSec,
		LogsURL:     req.LogsURL,
		Assignments: make([]store.Assignment, 0, len(req.Assignments)),
	}

	for i, a := range req.Assignments {
		day, err := api.ParseDay(a.Day)
		if err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i, err)
		}
		if a.ShiftID <= 0 || a.StaffID <= 0 {
			return nil, fmt.Errorf("assignment %d: shift_id and staff_id are required", i)
		}
		source := store.AssignmentSourceModel
		if a.Source != nil {
			source = store.AssignmentSource(*a.Source)
		}
		result.Assignments = append(result.Assignments, store.Assignment{
			Day:        day,
			ShiftID:    a.ShiftID,
			StaffID:    a.StaffID,
			IsOvertime: a.IsOvertime,
			Source:     source,
		})
	}

	if k := req.Kpi; k != nil {
		result.Kpi = &store.Kpi{
			SolverRunID:      runID,
			AvgSatisfaction:  k.AvgSatisfaction,
			UnderstaffTotal:  k.UnderstaffTotal,
			OvertimeTotal:    k.OvertimeTotal,
			NightViolations:  k.NightViolations,
			SeniorCoverageOK: k.SeniorCoverageOK,
		}
	}
	return result, nil
}
