// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import (
	"encoding/json"
	"time"
)

// CreateScenarioRequest is the request body for submitting a scenario.
type CreateScenarioRequest struct {
	UnitID    int64           `json:"unit_id"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
	CreatedBy *int64          `json:"created_by,omitempty"`
}

// ScenarioResponse represents a scenario in API responses.
type ScenarioResponse struct {
	ID        int64           `json:"scenario_id"`
	UnitID    int64           `json:"unit_id"`
	Source    string          `json:"source"`
	InputHash string          `json:"input_hash"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	CreatedBy *int64          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DeleteResponse is returned by delete endpoints.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// CreateRunRequest is the request body for starting a solver run.
type CreateRunRequest struct {
	ScenarioID  int64   `json:"scenario_id"`
	PolicySetID int64   `json:"policy_set_id"`
	Seed        *int    `json:"seed,omitempty"`
	Workers     *int    `json:"workers,omitempty"`
	CodeVersion *string `json:"code_version,omitempty"`
}

// SolverRunResponse represents a solver run in API responses.
type SolverRunResponse struct {
	ID           int64      `json:"solver_run_id"`
	ScenarioID   int64      `json:"scenario_id"`
	PolicySetID  int64      `json:"policy_set_id"`
	Status       string     `json:"status"`
	Phase        string     `json:"phase"`
	Attempt      int        `json:"attempt"`
	Seed         *int       `json:"seed,omitempty"`
	Workers      *int       `json:"workers,omitempty"`
	WallTimeSec  *float64   `json:"wall_time_sec,omitempty"`
	CodeVersion  *string    `json:"code_version,omitempty"`
	LogsURL      *string    `json:"logs_url,omitempty"`
	Error        *string    `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	IngestURL    string     `json:"ingest_url,omitempty"`
}

// IngestAssignment is one resolved assignment reported for a run.
type IngestAssignment struct {
	Day        string  `json:"day"`
	ShiftID    int64   `json:"shift_id"`
	StaffID    int64   `json:"staff_id"`
	IsOvertime bool    `json:"is_overtime"`
	Source     *string `json:"source,omitempty"`
}

// IngestKpi is the KPI block reported for a run.
type IngestKpi struct {
	AvgSatisfaction  int  `json:"avg_satisfaction"`
	UnderstaffTotal  int  `json:"understaff_total"`
	OvertimeTotal    int  `json:"overtime_total"`
	NightViolations  int  `json:"night_violations"`
	SeniorCoverageOK bool `json:"senior_coverage_ok"`
}

// IngestRequest is the body of the ingestion endpoint.
type IngestRequest struct {
	Status      string             `json:"status"`
	WallTimeSec *float64           `json:"wall_time_sec,omitempty"`
	LogsURL     *string            `json:"logs_url,omitempty"`
	Assignments []IngestAssignment `json:"assignments"`
	Kpi         *IngestKpi         `json:"kpi,omitempty"`
}

// IngestResponse is returned after a result has been ingested.
type IngestResponse struct {
	OK                  bool  `json:"ok"`
	SolverRunID         int64 `json:"solver_run_id"`
	Updated             bool  `json:"updated"`
	AssignmentsInserted int   `json:"assignments_inserted"`
	KpiUpserted         bool  `json:"kpi_upserted"`
}

// AssignmentResponse represents a stored assignment.
type AssignmentResponse struct {
	ID          int64  `json:"assignment_id"`
	SolverRunID int64  `json:"solver_run_id"`
	Day         string `json:"day"`
	ShiftID     int64  `json:"shift_id"`
	StaffID     int64  `json:"staff_id"`
	IsOvertime  bool   `json:"is_overtime"`
	Source      string `json:"source"`
}

// KpiResponse represents the KPI row of a run.
type KpiResponse struct {
	SolverRunID      int64 `json:"solver_run_id"`
	AvgSatisfaction  int   `json:"avg_satisfaction"`
	UnderstaffTotal  int   `json:"understaff_total"`
	OvertimeTotal    int   `json:"overtime_total"`
	NightViolations  int   `json:"night_violations"`
	SeniorCoverageOK bool  `json:"senior_coverage_ok"`
}

// CoverageItem is one row of a coverage bulk upsert.
type CoverageItem struct {
	Day           string          `json:"day"`
	ShiftID       int64           `json:"shift_id"`
	RequiredCount int             `json:"required_count"`
	RequiredSkill json.RawMessage `json:"required_skill,omitempty"`
}

// CoverageResponse represents a stored coverage requirement.
type CoverageResponse struct {
	ID            int64           `json:"coverage_id"`
	UnitID        int64           `json:"unit_id"`
	Day           string          `json:"day"`
	ShiftID       int64           `json:"shift_id"`
	RequiredCount int             `json:"required_count"`
	RequiredSkill json.RawMessage `json:"required_skill,omitempty"`
}

// AvailabilityItem is one row of an availability bulk upsert.
// Value is 1 when the staff member is available, 0 otherwise.
type AvailabilityItem struct {
	StaffID int64  `json:"staff_id"`
	Day     string `json:"day"`
	ShiftID int64  `json:"shift_id"`
	Value   int    `json:"value"`
}

// PreferenceItem is one row of a preferences bulk upsert.
type PreferenceItem struct {
	StaffID int64  `json:"staff_id"`
	Day     string `json:"day"`
	ShiftID int64  `json:"shift_id"`
	Penalty int    `json:"penalty"`
}

// BulkUpsertResponse is returned by the bulk upsert endpoints.
type BulkUpsertResponse struct {
	Upserted bool `json:"upserted"`
	Count    int  `json:"count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Run and scenario status values as they appear on the wire.
const (
	StatusReady     = "ready"
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)
