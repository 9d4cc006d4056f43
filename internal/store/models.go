// Package store contains the database layer for shiftplane.
package store

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidReference is returned when a write names a unit, policy set,
	// shift or staff member that does not exist.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrNotQueued is returned by Retry when the run has no queue item,
	// typically because a result was already ingested for it.
	ErrNotQueued = errors.New("run not queued")

	// ErrRunFinished is returned when a write targets a run that already
	// reached a terminal status.
	ErrRunFinished = errors.New("run already finished")
)

// Scenario is an immutable, content-addressed snapshot of solver input
// for one unit. (UnitID, InputHash) is unique.
type Scenario struct {
	ID        int64
	UnitID    int64
	Source    string
	InputHash string
	Payload   json.RawMessage
	Status    ScenarioStatus
	CreatedBy *int64
	CreatedAt time.Time
}

// ScenarioStatus represents the state of a scenario.
type ScenarioStatus string

const (
	ScenarioStatusReady     ScenarioStatus = "ready"
	ScenarioStatusQueued    ScenarioStatus = "queued"
	ScenarioStatusRunning   ScenarioStatus = "running"
	ScenarioStatusSucceeded ScenarioStatus = "succeeded"
	ScenarioStatusFailed    ScenarioStatus = "failed"
)

// SolverRun is one attempt to solve a scenario under a policy set.
type SolverRun struct {
	ID           int64
	ScenarioID   int64
	PolicySetID  int64
	Status       RunStatus
	Phase        RunPhase
	Attempt      int
	Seed         *int
	Workers      *int
	WallTimeSec  *float64
	CodeVersion  *string
	LogsURL      *string
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// RunStatus represents the state of a solver run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	}
	return false
}

// RunPhase is the last orchestration step a run has reached.
// It is persisted after every step so an interrupted run can be resumed.
type RunPhase string

const (
	RunPhaseCreated   RunPhase = "created"
	RunPhaseSolving   RunPhase = "solving"
	RunPhaseResolving RunPhase = "resolving"
	RunPhaseIngesting RunPhase = "ingesting"
	RunPhaseDone      RunPhase = "done"
)

// AssignmentSource records who produced an assignment.
type AssignmentSource string

const (
	AssignmentSourceModel    AssignmentSource = "MODEL"
	AssignmentSourcePostfill AssignmentSource = "POSTFILL"
)

// Valid reports whether s is a known assignment source.
func (s AssignmentSource) Valid() bool {
	return s == AssignmentSourceModel || s == AssignmentSourcePostfill
}

// Assignment places one staff member on one shift on one day for a run.
type Assignment struct {
	ID          int64
	SolverRunID int64
	Day         time.Time
	ShiftID     int64
	StaffID     int64
	IsOvertime  bool
	Source      AssignmentSource
}

// Kpi holds the aggregate quality metrics of a run. At most one per run.
type Kpi struct {
	SolverRunID      int64
	AvgSatisfaction  int
	UnderstaffTotal  int
	OvertimeTotal    int
	NightViolations  int
	SeniorCoverageOK bool
}

// IngestResult is everything written by the ingestion transaction.
// Nil WallTimeSec or LogsURL keep the stored value.
type IngestResult struct {
	RunID       int64
	Status      RunStatus
	WallTimeSec *float64
	LogsURL     *string
	Assignments []Assignment
	Kpi         *Kpi
}

// IngestOutcome reports what the ingestion transaction changed.
type IngestOutcome struct {
	AssignmentsInserted int
	KpiUpserted         bool
}

// ShiftRef is the part of a shift pattern needed to resolve solver output.
type ShiftRef struct {
	ID   int64
	Name string
}

// StaffRef is the part of a staff record needed to resolve solver output.
type StaffRef struct {
	ID       int64
	Code     *string
	FullName string
}

// CoverageRequirement is the number of staff required on a shift.
type CoverageRequirement struct {
	ID            int64
	UnitID        int64
	Day           time.Time
	ShiftID       int64
	RequiredCount int
	RequiredSkill json.RawMessage
}

// Availability marks whether a staff member can work a shift.
type Availability struct {
	StaffID int64
	Day     time.Time
	ShiftID int64
	Value   int
}

// Preference is a staff member's penalty for working a shift.
type Preference struct {
	StaffID int64
	Day     time.Time
	ShiftID int64
	Penalty int
}
