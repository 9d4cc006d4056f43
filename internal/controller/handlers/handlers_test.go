package handlers

import (
	"context"

	"shiftplane/internal/orchestrator"
	"shiftplane/internal/store"
)

// Mock Store
type mockStore struct {
	pingErr error

	// Scenario hooks
	upsertScenarioErr  error
	getScenarioResp    *store.Scenario
	getScenarioErr     error
	listScenariosResp  []store.Scenario
	listScenariosErr   error
	deleteScenarioResp bool
	deleteScenarioErr  error

	// Run hooks
	getRunResp      *store.SolverRun
	getRunErr       error
	listRunsResp    []store.SolverRun
	listRunsErr     error
	assignmentsResp []store.Assignment
	assignmentsErr  error
	kpiResp         *store.Kpi
	kpiErr          error

	// Bulk hooks
	upsertErr    error
	coverageResp []store.CoverageRequirement

	// Spies (to verify arguments passed by handlers)
	capturedScenario     *store.Scenario
	capturedUnitFilter   *int64
	capturedRunFilter    *int64
	capturedCoverage     []store.CoverageRequirement
	capturedAvailability []store.Availability
	capturedPreferences  []store.Preference
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) UpsertScenario(ctx context.Context, s *store.Scenario) error {
	m.capturedScenario = s
	if m.upsertScenarioErr != nil {
		return m.upsertScenarioErr
	}
	s.ID = 1
	s.Status = store.ScenarioStatusReady
	return nil
}

func (m *mockStore) GetScenario(ctx context.Context, id int64) (*store.Scenario, error) {
	return m.getScenarioResp, m.getScenarioErr
}

func (m *mockStore) ListScenarios(ctx context.Context, unitID *int64) ([]store.Scenario, error) {
	m.capturedUnitFilter = unitID
	return m.listScenariosResp, m.listScenariosErr
}

func (m *mockStore) SetScenarioStatus(ctx context.Context, tx store.DBTransaction, id int64, status store.ScenarioStatus) error {
	return nil
}

func (m *mockStore) DeleteScenario(ctx context.Context, id int64) (bool, error) {
	return m.deleteScenarioResp, m.deleteScenarioErr
}

func (m *mockStore) CreateRun(ctx context.Context, tx store.DBTransaction, run *store.SolverRun) error {
	return nil
}

func (m *mockStore) GetRun(ctx context.Context, id int64) (*store.SolverRun, error) {
	return m.getRunResp, m.getRunErr
}

func (m *mockStore) ListRuns(ctx context.Context, scenarioID *int64) ([]store.SolverRun, error) {
	m.capturedRunFilter = scenarioID
	return m.listRunsResp, m.listRunsErr
}

func (m *mockStore) BeginAttempt(ctx context.Context, tx store.DBTransaction, id int64) (int, error) {
	return 1, nil
}

func (m *mockStore) SetRunPhase(ctx context.Context, tx store.DBTransaction, id int64, phase store.RunPhase) error {
	return nil
}

func (m *mockStore) FailRun(ctx context.Context, tx store.DBTransaction, id int64, errMsg string) error {
	return nil
}

func (m *mockStore) IngestRunResult(ctx context.Context, result *store.IngestResult) (*store.IngestOutcome, error) {
	return &store.IngestOutcome{}, nil
}

func (m *mockStore) ListAssignments(ctx context.Context, runID int64) ([]store.Assignment, error) {
	return m.assignmentsResp, m.assignmentsErr
}

func (m *mockStore) GetKpi(ctx context.Context, runID int64) (*store.Kpi, error) {
	return m.kpiResp, m.kpiErr
}

func (m *mockStore) ListShiftRefs(ctx context.Context, unitID int64) ([]store.ShiftRef, error) {
	return nil, nil
}

func (m *mockStore) ListStaffRefs(ctx context.Context, unitID int64) ([]store.StaffRef, error) {
	return nil, nil
}

func (m *mockStore) UpsertCoverage(ctx context.Context, unitID int64, items []store.CoverageRequirement) (int, error) {
	m.capturedCoverage = items
	return len(items), m.upsertErr
}

func (m *mockStore) ListCoverage(ctx context.Context, unitID int64) ([]store.CoverageRequirement, error) {
	return m.coverageResp, nil
}

func (m *mockStore) UpsertAvailability(ctx context.Context, items []store.Availability) (int, error) {
	m.capturedAvailability = items
	return len(items), m.upsertErr
}

func (m *mockStore) UpsertPreferences(ctx context.Context, items []store.Preference) (int, error) {
	m.capturedPreferences = items
	return len(items), m.upsertErr
}

// Mock Runner
type mockRunner struct {
	startRunResp *store.SolverRun
	startRunErr  error
	ingestResp   *store.IngestOutcome
	ingestErr    error

	capturedStart  orchestrator.StartRunRequest
	capturedIngest *store.IngestResult
}

func (m *mockRunner) StartRun(ctx context.Context, req orchestrator.StartRunRequest) (*store.SolverRun, error) {
	m.capturedStart = req
	return m.startRunResp, m.startRunErr
}

func (m *mockRunner) Ingest(ctx context.Context, result *store.IngestResult) (*store.IngestOutcome, error) {
	m.capturedIngest = result
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	if m.ingestResp != nil {
		return m.ingestResp, nil
	}
	return &store.IngestOutcome{AssignmentsInserted: len(result.Assignments), KpiUpserted: result.Kpi != nil}, nil
}
