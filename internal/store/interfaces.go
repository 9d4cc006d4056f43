package store

import (
	"context"
	"database/sql"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// ScenarioStore persists content-addressed scenarios.
type ScenarioStore interface {
	// UpsertScenario inserts a scenario or, when (unit, input hash) already
	// exists, replaces its payload and resets its status to ready.
	// The stored row is written back into s.
	UpsertScenario(ctx context.Context, s *Scenario) error

	// GetScenario returns a scenario by ID or ErrNotFound.
	GetScenario(ctx context.Context, id int64) (*Scenario, error)

	// ListScenarios returns scenarios, newest first, optionally for one unit.
	ListScenarios(ctx context.Context, unitID *int64) ([]Scenario, error)

	// SetScenarioStatus updates the status of a scenario.
	SetScenarioStatus(ctx context.Context, tx DBTransaction, id int64, status ScenarioStatus) error

	// DeleteScenario removes a scenario and reports whether a row existed.
	DeleteScenario(ctx context.Context, id int64) (bool, error)
}

// RunStore persists solver runs and their outputs.
type RunStore interface {
	// CreateRun inserts a run and fills in its ID and StartedAt.
	CreateRun(ctx context.Context, tx DBTransaction, run *SolverRun) error

	// GetRun returns a run by ID or ErrNotFound.
	GetRun(ctx context.Context, id int64) (*SolverRun, error)

	// ListRuns returns runs, most recent first, optionally for one scenario.
	ListRuns(ctx context.Context, scenarioID *int64) ([]SolverRun, error)

	// BeginAttempt moves a run to running/solving and returns the new attempt number.
	BeginAttempt(ctx context.Context, tx DBTransaction, id int64) (int, error)

	// SetRunPhase records the orchestration step a run has reached.
	SetRunPhase(ctx context.Context, tx DBTransaction, id int64, phase RunPhase) error

	// FailRun marks a run failed with a message and drops its queue item.
	FailRun(ctx context.Context, tx DBTransaction, id int64, errMsg string) error

	// IngestRunResult atomically finalizes a run with its assignments and KPI.
	// Returns ErrNotFound when the run does not exist; nothing is written then.
	IngestRunResult(ctx context.Context, result *IngestResult) (*IngestOutcome, error)

	// ListAssignments returns the assignments of a run ordered by day and shift.
	ListAssignments(ctx context.Context, runID int64) ([]Assignment, error)

	// GetKpi returns the KPI of a run or ErrNotFound.
	GetKpi(ctx context.Context, runID int64) (*Kpi, error)
}

// ReferenceStore reads and bulk-writes unit reference data.
type ReferenceStore interface {
	// ListShiftRefs returns the shift patterns of a unit.
	ListShiftRefs(ctx context.Context, unitID int64) ([]ShiftRef, error)

	// ListStaffRefs returns the staff of a unit.
	ListStaffRefs(ctx context.Context, unitID int64) ([]StaffRef, error)

	// UpsertCoverage writes coverage requirements for a unit in one transaction.
	UpsertCoverage(ctx context.Context, unitID int64, items []CoverageRequirement) (int, error)

	// ListCoverage returns coverage requirements of a unit ordered by day and shift.
	ListCoverage(ctx context.Context, unitID int64) ([]CoverageRequirement, error)

	// UpsertAvailability writes availability rows in one transaction.
	UpsertAvailability(ctx context.Context, items []Availability) (int, error)

	// UpsertPreferences writes preference rows in one transaction.
	UpsertPreferences(ctx context.Context, items []Preference) (int, error)
}
