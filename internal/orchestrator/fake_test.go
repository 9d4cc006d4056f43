package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"shiftplane/internal/solver"
	"shiftplane/internal/store"
)

type fakeTx struct{}

func (fakeTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errors.New("not supported")
}
func (fakeTx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}
func (fakeTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }
func (fakeTx) Commit() error                                                   { return nil }
func (fakeTx) Rollback() error                                                 { return nil }

type assignmentKey struct {
	run, shift, staff int64
	day               string
}

// memStore is an in-memory Store. Transactions are not isolated.
type memStore struct {
	mu          sync.Mutex
	maxAttempts int
	nextRunID   int64
	scenarios   map[int64]*store.Scenario
	runs        map[int64]*store.SolverRun
	queue       map[int64]int
	assignments map[assignmentKey]store.Assignment
	kpis        map[int64]store.Kpi
	shifts      []store.ShiftRef
	staff       []store.StaffRef
	phases      []store.RunPhase
	ingestErr   error
}

func newMemStore() *memStore {
	code := "N001"
	return &memStore{
		maxAttempts: 3,
		nextRunID:   1,
		scenarios: map[int64]*store.Scenario{
			10: {ID: 10, UnitID: 1, Payload: []byte(`{"days":7}`), Status: store.ScenarioStatusReady},
		},
		runs:        map[int64]*store.SolverRun{},
		queue:       map[int64]int{},
		assignments: map[assignmentKey]store.Assignment{},
		kpis:        map[int64]store.Kpi{},
		shifts:      []store.ShiftRef{{ID: 1, Name: "Morning"}, {ID: 3, Name: "Night"}},
		staff: []store.StaffRef{
			{ID: 100, Code: &code, FullName: "Alice Smith"},
			{ID: 101, FullName: "Bob Jones"},
		},
	}
}

func (m *memStore) BeginTx(context.Context) (store.Tx, error) { return fakeTx{}, nil }

func (m *memStore) UpsertScenario(_ context.Context, s *store.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.ID] = s
	return nil
}

func (m *memStore) GetScenario(_ context.Context, id int64) (*store.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListScenarios(context.Context, *int64) ([]store.Scenario, error) {
	return nil, nil
}

func (m *memStore) SetScenarioStatus(_ context.Context, _ store.DBTransaction, id int64, status store.ScenarioStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[id]
	if !ok {
		return store.ErrNotFound
	}
	s.Status = status
	return nil
}

func (m *memStore) DeleteScenario(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.scenarios[id]
	delete(m.scenarios, id)
	return ok, nil
}

func (m *memStore) CreateRun(_ context.Context, _ store.DBTransaction, run *store.SolverRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = m.nextRunID
	m.nextRunID++
	now := time.Now()
	run.StartedAt = &now
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memStore) GetRun(_ context.Context, id int64) (*store.SolverRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRuns(context.Context, *int64) ([]store.SolverRun, error) { return nil, nil }

func (m *memStore) BeginAttempt(_ context.Context, _ store.DBTransaction, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	r.Status = store.RunStatusRunning
	r.Attempt++
	m.setPhase(r, store.RunPhaseSolving)
	return r.Attempt, nil
}

func (m *memStore) setPhase(r *store.SolverRun, p store.RunPhase) {
	r.Phase = p
	m.phases = append(m.phases, p)
}

func (m *memStore) SetRunPhase(_ context.Context, _ store.DBTransaction, id int64, phase store.RunPhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status.Terminal() {
		return store.ErrRunFinished
	}
	m.setPhase(r, phase)
	return nil
}

func (m *memStore) FailRun(_ context.Context, _ store.DBTransaction, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failLocked(id, errMsg)
}

func (m *memStore) failLocked(id int64, errMsg string) error {
	r, ok := m.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status.Terminal() {
		return store.ErrRunFinished
	}
	delete(m.queue, id)
	r.Status = store.RunStatusFailed
	r.ErrorMessage = &errMsg
	now := time.Now()
	r.FinishedAt = &now
	m.setPhase(r, store.RunPhaseDone)
	return nil
}

func (m *memStore) IngestRunResult(_ context.Context, res *store.IngestResult) (*store.IngestOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	r, ok := m.runs[res.RunID]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.Status = res.Status
	if res.WallTimeSec != nil {
		r.WallTimeSec = res.WallTimeSec
	}
	if res.LogsURL != nil {
		r.LogsURL = res.LogsURL
	}
	m.setPhase(r, store.RunPhaseDone)

	out := &store.IngestOutcome{}
	for _, a := range res.Assignments {
		k := assignmentKey{run: res.RunID, shift: a.ShiftID, staff: a.StaffID, day: a.Day.Format("2006-01-02")}
		if _, dup := m.assignments[k]; dup {
			continue
		}
		a.SolverRunID = res.RunID
		m.assignments[k] = a
		out.AssignmentsInserted++
	}
	if res.Kpi != nil {
		k := *res.Kpi
		k.SolverRunID = res.RunID
		m.kpis[res.RunID] = k
		out.KpiUpserted = true
	}
	delete(m.queue, res.RunID)
	return out, nil
}

func (m *memStore) ListAssignments(_ context.Context, runID int64) ([]store.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Assignment
	for k, a := range m.assignments {
		if k.run == runID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

func (m *memStore) GetKpi(_ context.Context, runID int64) (*store.Kpi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.kpis[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &k, nil
}

func (m *memStore) Enqueue(_ context.Context, _ store.DBTransaction, runID int64, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue[runID] = 0
	return runID, nil
}

func (m *memStore) DequeueBatch(context.Context, int) ([]store.QueueItem, error) { return nil, nil }

func (m *memStore) Complete(_ context.Context, _ store.DBTransaction, runID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queue, runID)
	return nil
}

func (m *memStore) Retry(_ context.Context, _ store.DBTransaction, runID int64, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.queue[runID]
	if !ok {
		return false, store.ErrNotQueued
	}
	if attempt+1 >= m.maxAttempts {
		if err := m.failLocked(runID, errMsg); err != nil {
			return true, err
		}
		if sc, ok := m.scenarios[m.runs[runID].ScenarioID]; ok {
			sc.Status = store.ScenarioStatusFailed
		}
		return true, nil
	}
	m.queue[runID] = attempt + 1
	r := m.runs[runID]
	r.Status = store.RunStatusQueued
	r.ErrorMessage = &errMsg
	m.setPhase(r, store.RunPhaseCreated)
	if sc, ok := m.scenarios[r.ScenarioID]; ok {
		sc.Status = store.ScenarioStatusQueued
	}
	return false, nil
}

func (m *memStore) SetVisibleAfter(context.Context, store.DBTransaction, int64, time.Time) error {
	return nil
}

func (m *memStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queue)), nil
}

func (m *memStore) ListShiftRefs(context.Context, int64) ([]store.ShiftRef, error) {
	return m.shifts, nil
}

func (m *memStore) ListStaffRefs(context.Context, int64) ([]store.StaffRef, error) {
	return m.staff, nil
}

type fakeSolver struct {
	mu    sync.Mutex
	calls int
	res   *solver.Result
	err   error
	// during runs while the solve call is in flight.
	during func()
}

func (f *fakeSolver) Solve(context.Context, []byte) (*solver.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.res
	return &cp, nil
}

type fakeArchive struct {
	url string
	err error
	got []byte
}

func (f *fakeArchive) Put(_ context.Context, _ int64, _ int, body []byte) (string, error) {
	f.got = body
	return f.url, f.err
}
