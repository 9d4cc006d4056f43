package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shiftplane/internal/store"
	"shiftplane/pkg/api"
)

// UpsertCoverage handles PUT /api/v1/units/{unit_id}/coverage/bulk.
func (h *Handlers) UpsertCoverage(w http.ResponseWriter, r *http.Request) {
	unitID, ok := pathID(r, "unit_id")
	if !ok {
		h.httpError(w, "Invalid unit id", http.StatusBadRequest)
		return
	}

	var items []api.CoverageItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rows := make([]store.CoverageRequirement, 0, len(items))
	for i, it := range items {
		day, err := api.ParseDay(it.Day)
		if err != nil {
			h.httpError(w, fmt.Sprintf("item %d: %v", i, err), http.StatusBadRequest)
			return
		}
		if it.ShiftID <= 0 {
			h.httpError(w, fmt.Sprintf("item %d: shift_id is required", i), http.StatusBadRequest)
			return
		}
		if it.RequiredCount < 0 {
			h.httpError(w, fmt.Sprintf("item %d: required_count must not be negative", i), http.StatusBadRequest)
			return
		}
		rows = append(rows, store.CoverageRequirement{
			UnitID:        unitID,
			Day:           day,
			ShiftID:       it.ShiftID,
			RequiredCount: it.RequiredCount,
			RequiredSkill: it.RequiredSkill,
		})
	}

	n, err := h.store.UpsertCoverage(r.Context(), unitID, rows)
	h.bulkResult(w, r, "coverage", n, err)
}

// ListCoverage handles GET /api/v1/units/{unit_id}/coverage.
func (h *Handlers) ListCoverage(w http.ResponseWriter, r *http.Request) {
	unitID, ok := pathID(r, "unit_id")
	if !ok {
		h.httpError(w, "Invalid unit id", http.StatusBadRequest)
		return
	}

	rows, err := h.store.ListCoverage(r.Context(), unitID)
	if err != nil {
		h.log(r).Error("failed to list coverage", "unit_id", unitID, "error", err)
		h.httpError(w, "Failed to list coverage", http.StatusInternalServerError)
		return
	}

	resp := make([]api.CoverageResponse, 0, len(rows))
	for _, c := range rows {
		resp = append(resp, api.CoverageResponse{
			ID:            c.ID,
			UnitID:        c.UnitID,
			Day:           api.FormatDay(c.Day),
			ShiftID:       c.ShiftID,
			RequiredCount: c.RequiredCount,
			RequiredSkill: c.RequiredSkill,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

// UpsertAvailability handles POST /api/v1/availability/bulk.
func (h *Handlers) UpsertAvailability(w http.ResponseWriter, r *http.Request) {
	var items []api.AvailabilityItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rows := make([]store.Availability, 0, len(items))
	for i, it := range items {
		day, err := validateStaffDay(i, it.StaffID, it.ShiftID, it.Day)
		if err != nil {
			h.httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if it.Value != 0 && it.Value != 1 {
			h.httpError(w, fmt.Sprintf("item %d: value must be 0 or 1", i), http.StatusBadRequest)
			return
		}
		rows = append(rows, store.Availability{StaffID: it.StaffID, Day: day, ShiftID: it.ShiftID, Value: it.Value})
	}

	n, err := h.store.UpsertAvailability(r.Context(), rows)
	h.bulkResult(w, r, "availability", n, err)
}

// UpsertPreferences handles POST /api/v1/preferences/bulk.
func (h *Handlers) UpsertPreferences(w http.ResponseWriter, r *http.Request) {
	var items []api.PreferenceItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rows := make([]store.Preference, 0, len(items))
	for i, it := range items {
		day, err := validateStaffDay(i, it.StaffID, it.ShiftID, it.Day)
		if err != nil {
			h.httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if it.Penalty < 0 {
			h.httpError(w, fmt.Sprintf("item %d: penalty must not be negative", i), http.StatusBadRequest)
			return
		}
		rows = append(rows, store.Preference{StaffID: it.StaffID, Day: day, ShiftID: it.ShiftID, Penalty: it.Penalty})
	}

	n, err := h.store.UpsertPreferences(r.Context(), rows)
	h.bulkResult(w, r, "preferences", n, err)
}

func validateStaffDay(i int, staffID, shiftID int64, rawDay string) (day time.Time, err error) {
	if staffID <= 0 || shiftID <= 0 {
		return day, fmt.Errorf("item %d: staff_id and shift_id are required", i)
	}
	day, err = api.ParseDay(rawDay)
	if err != nil {
		return day, fmt.Errorf("item %d: %w", i, err)
	}
	return day, nil
}

func (h *Handlers) bulkResult(w http.ResponseWriter, r *http.Request, kind string, n int, err error) {
	if errors.Is(err, store.ErrInvalidReference) {
		h.httpErrorDetails(w, "Unknown reference in batch", http.StatusBadRequest, err)
		return
	}
	if err != nil {
		h.log(r).Error("bulk upsert failed", "kind", kind, "error", err)
		h.httpError(w, "Failed to upsert "+kind, http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.BulkUpsertResponse{Upserted: true, Count: n})
}
