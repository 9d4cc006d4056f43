package handlers

import (
	"errors"
	"net/http"

	"shiftplane/internal/store"
	"shiftplane/pkg/api"
)

// ListAssignments handles GET /api/v1/assignments?solver_run_id=.
func (h *Handlers) ListAssignments(w http.ResponseWriter, r *http.Request) {
	runID, ok := queryID(r, "solver_run_id")
	if !ok || runID == nil {
		h.httpError(w, "solver_run_id is required", http.StatusBadRequest)
		return
	}

	assignments, err := h.store.ListAssignments(r.Context(), *runID)
	if err != nil {
		h.log(r).Error("failed to list assignments", "run_id", *runID, "error", err)
		h.httpError(w, "Failed to list assignments", http.StatusInternalServerError)
		return
	}

	resp := make([]api.AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		resp = append(resp, api.AssignmentResponse{
			ID:          a.ID,
			SolverRunID: a.SolverRunID,
			Day:         api.FormatDay(a.Day),
			ShiftID:     a.ShiftID,
			StaffID:     a.StaffID,
			IsOvertime:  a.IsOvertime,
			Source:      string(a.Source),
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetKpi handles GET /api/v1/kpi/{solver_run_id}.
func (h *Handlers) GetKpi(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(r, "solver_run_id")
	if !ok {
		h.httpError(w, "Invalid solver run id", http.StatusBadRequest)
		return
	}

	k, err := h.store.GetKpi(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "KPI not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log(r).Error("failed to load kpi", "run_id", runID, "error", err)
		h.httpError(w, "Failed to load KPI", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.KpiResponse{
		SolverRunID:      k.SolverRunID,
		AvgSatisfaction:  k.AvgSatisfaction,
		UnderstaffTotal:  k.UnderstaffTotal,
		OvertimeTotal:    k.OvertimeTotal,
		NightViolations:  k.NightViolations,
		SeniorCoverageOK: k.SeniorCoverageOK,
	})
}
