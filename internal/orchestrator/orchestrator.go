// Package orchestrator drives a solver run from creation to ingestion.
//
// Every step of a run is persisted as a phase on the run row, and each run
// owns a run_queue item until its result is ingested. A process that dies
// mid-run leaves the item behind, and the worker picks it up again through
// Resume once the visibility timeout has passed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shiftplane/internal/kpi"
	"shiftplane/internal/resolver"
	"shiftplane/internal/solver"
	"shiftplane/internal/store"
	"shiftplane/pkg/api"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultVisibilityTimeout hides a freshly created run from the worker while
// the request that created it is still solving.
const DefaultVisibilityTimeout = 5 * time.Minute

// Store is everything the orchestrator needs from persistence.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	store.ScenarioStore
	store.RunStore
	store.RunQueue
	resolver.Lookup
}

// Solver invokes the external optimizer.
type Solver interface {
	Solve(ctx context.Context, payload []byte) (*solver.Result, error)
}

// Archiver keeps the raw solver response and returns where it lives.
type Archiver interface {
	Put(ctx context.Context, runID int64, attempt int, body []byte) (string, error)
}

// Config tunes run orchestration.
type Config struct {
	// FailureMarkers classify a solver status as failed when the lower-cased
	// status contains any of them.
	FailureMarkers []string

	// VisibilityTimeout is how long a new run stays invisible to the worker.
	VisibilityTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithArchive stores every solver response before it is resolved.
func WithArchive(a Archiver) Option {
	return func(o *Orchestrator) { o.archive = a }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs scenarios through the solver and ingests the results.
type Orchestrator struct {
	store   Store
	solver  Solver
	archive Archiver
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
	tracer  trace.Tracer
	metrics *instruments
}

// New creates an Orchestrator.
func New(s Store, sv Solver, logger *slog.Logger, cfg Config, opts ...Option) (*Orchestrator, error) {
	if len(cfg.FailureMarkers) == 0 {
		cfg.FailureMarkers = []string{"fail"}
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = DefaultVisibilityTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newInstruments()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	o := &Orchestrator{
		store:   s,
		solver:  sv,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		tracer:  otel.Tracer("shiftplane/orchestrator"),
		metrics: m,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// StartRunRequest holds the parameters of a new run.
type StartRunRequest struct {
	ScenarioID  int64
	PolicySetID int64
	Seed        *int
	Workers     *int
	CodeVersion *string
}

// StartRun creates a run for a scenario and executes it synchronously.
// The returned run reflects the state after the attempt, also when err is
// non-nil and the run was created.
func (o *Orchestrator) StartRun(ctx context.Context, req StartRunRequest) (*store.SolverRun, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.start_run",
		trace.WithAttributes(attribute.Int64("scenario.id", req.ScenarioID)))
	defer span.End()

	sc, err := o.store.GetScenario(ctx, req.ScenarioID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrScenarioNotFound
	}
	if err != nil {
		return nil, err
	}

	run := &store.SolverRun{
		ScenarioID:  sc.ID,
		PolicySetID: req.PolicySetID,
		Status:      store.RunStatusQueued,
		Phase:       store.RunPhaseCreated,
		Seed:        req.Seed,
		Workers:     req.Workers,
		CodeVersion: req.CodeVersion,
	}
	if err := o.create(ctx, sc.ID, run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("run.id", run.ID))
	o.metrics.runsStarted.Add(ctx, 1)

	o.logger.InfoContext(ctx, "solver run created",
		"run_id", run.ID, "scenario_id", sc.ID, "policy_set_id", req.PolicySetID)

	return o.execute(ctx, sc, run.ID)
}

func (o *Orchestrator) create(ctx context.Context, scenarioID int64, run *store.SolverRun) error {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := o.store.SetScenarioStatus(ctx, tx, scenarioID, store.ScenarioStatusQueued); err != nil {
		return err
	}
	if err := o.store.CreateRun(ctx, tx, run); err != nil {
		return err
	}
	if _, err := o.store.Enqueue(ctx, tx, run.ID, o.now().Add(o.cfg.VisibilityTimeout)); err != nil {
		return err
	}
	return tx.Commit()
}

// Resume re-executes a run claimed from the run queue. Terminal runs are
// dropped from the queue.
func (o *Orchestrator) Resume(ctx context.Context, runID int64) (*store.SolverRun, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.resume",
		trace.WithAttributes(attribute.Int64("run.id", runID)))
	defer span.End()

	run, err := o.store.GetRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		// The run is gone (scenario deleted); nothing left to do.
		if cerr := o.store.Complete(ctx, nil, runID); cerr != nil {
			return nil, cerr
		}
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		o.logger.InfoContext(ctx, "run already finished, dropping queue item",
			"run_id", runID, "status", run.Status)
		return run, o.store.Complete(ctx, nil, runID)
	}

	sc, err := o.store.GetScenario(ctx, run.ScenarioID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrScenarioNotFound
	}
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, sc, runID)
}

func (o *Orchestrator) execute(ctx context.Context, sc *store.Scenario, runID int64) (*store.SolverRun, error) {
	logger := o.logger.With("run_id", runID, "scenario_id", sc.ID)

	attempt, err := o.store.BeginAttempt(ctx, nil, runID)
	if err != nil {
		return nil, err
	}
	if err := o.store.SetScenarioStatus(ctx, nil, sc.ID, store.ScenarioStatusRunning); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "solving", "attempt", attempt)

	res, err := o.solver.Solve(ctx, sc.Payload)
	if err != nil {
		o.metrics.solverErrors.Add(ctx, 1)
		exhausted, rerr := o.store.Retry(ctx, nil, runID, err.Error())
		if concluded(rerr) {
			logger.InfoContext(ctx, "solver failed after the run was concluded elsewhere", "error", err)
			return o.settled(ctx, sc.ID, runID, err)
		}
		if rerr != nil {
			logger.ErrorContext(ctx, "failed to reschedule run", "error", rerr)
			return nil, errors.Join(err, rerr)
		}
		if exhausted {
			o.metrics.finished(ctx, string(store.RunStatusFailed))
			logger.ErrorContext(ctx, "solver failed, attempts exhausted", "attempt", attempt, "error", err)
		} else {
			logger.WarnContext(ctx, "solver failed, run rescheduled", "attempt", attempt, "error", err)
		}
		return o.refreshed(ctx, runID, err)
	}
	o.metrics.solverTime.Record(ctx, res.Elapsed.Seconds())

	var logsURL *string
	if o.archive != nil {
		u, err := o.archive.Put(ctx, runID, attempt, res.Raw)
		if err != nil {
			logger.WarnContext(ctx, "failed to archive solver response", "error", err)
		} else {
			logsURL = &u
		}
	}

	if err := o.store.SetRunPhase(ctx, nil, runID, store.RunPhaseResolving); err != nil {
		if concluded(err) {
			logger.InfoContext(ctx, "solver result dropped, run was concluded elsewhere")
			return o.settled(ctx, sc.ID, runID, err)
		}
		return nil, err
	}
	assignments, err := o.resolve(ctx, logger, sc.UnitID, res.Assignments)
	if err != nil {
		var resErr *ResolutionError
		if !errors.As(err, &resErr) {
			return nil, err
		}
		resErr.RunID = runID
		if ferr := o.fail(ctx, sc.ID, runID, resErr.Error()); ferr != nil {
			if concluded(ferr) {
				logger.InfoContext(ctx, "unresolvable output ignored, run was concluded elsewhere", "error", resErr)
				return o.settled(ctx, sc.ID, runID, resErr)
			}
			return nil, errors.Join(resErr, ferr)
		}
		logger.WarnContext(ctx, "solver output could not be resolved", "error", resErr)
		return o.refreshed(ctx, runID, resErr)
	}

	k := kpi.Aggregate(res.NurseStats, res.Understaffed)
	status := o.classify(res.Status)
	wall := res.Elapsed.Seconds()

	if err := o.store.SetRunPhase(ctx, nil, runID, store.RunPhaseIngesting); err != nil {
		if concluded(err) {
			logger.InfoContext(ctx, "solver result dropped, run was concluded elsewhere")
			return o.settled(ctx, sc.ID, runID, err)
		}
		return nil, err
	}
	outcome, err := o.Ingest(ctx, &store.IngestResult{
		RunID:       runID,
		Status:      status,
		WallTimeSec: &wall,
		LogsURL:     logsURL,
		Assignments: assignments,
		Kpi:         &k,
	})
	if err != nil {
		// The queue item survives, so the worker retries the whole attempt.
		logger.ErrorContext(ctx, "ingestion failed", "error", err)
		return nil, err
	}

	if err := o.store.SetScenarioStatus(ctx, nil, sc.ID, store.ScenarioStatus(status)); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "run finished",
		"status", status,
		"solver_status", res.Status,
		"assignments_inserted", outcome.AssignmentsInserted,
		"wall_time_sec", wall,
	)
	return o.store.GetRun(ctx, runID)
}

// resolve maps solver tuples onto stored ids. The first failure aborts.
func (o *Orchestrator) resolve(ctx context.Context, logger *slog.Logger, unitID int64, in []solver.Assignment) ([]store.Assignment, error) {
	r, err := resolver.Build(ctx, o.store, unitID)
	if err != nil {
		return nil, err
	}
	for _, c := range r.Collisions() {
		logger.WarnContext(ctx, "ambiguous identifier", "unit_id", unitID, "collision", c.String())
	}

	out := make([]store.Assignment, 0, len(in))
	for _, a := range in {
		day, err := api.ParseDay(a.Day)
		if err != nil {
			return nil, &ResolutionError{Err: err}
		}
		shiftID, err := r.Shift(a.Shift)
		if err != nil {
			return nil, &ResolutionError{Err: err}
		}
		staffID, err := r.Staff(a.Nurse)
		if err != nil {
			return nil, &ResolutionError{Err: err}
		}
		out = append(out, store.Assignment{
			Day:     day,
			ShiftID: shiftID,
			StaffID: staffID,
			Source:  store.AssignmentSourceModel,
		})
	}
	return out, nil
}

func (o *Orchestrator) classify(solverStatus string) store.RunStatus {
	s := strings.ToLower(solverStatus)
	for _, m := range o.cfg.FailureMarkers {
		if m != "" && strings.Contains(s, strings.ToLower(m)) {
			return store.RunStatusFailed
		}
	}
	return store.RunStatusSucceeded
}

func (o *Orchestrator) fail(ctx context.Context, scenarioID, runID int64, msg string) error {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := o.store.FailRun(ctx, tx, runID, msg); err != nil {
		return err
	}
	if err := o.store.SetScenarioStatus(ctx, tx, scenarioID, store.ScenarioStatusFailed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	o.metrics.finished(ctx, string(store.RunStatusFailed))
	return nil
}

// concluded reports whether err means an ingested result already finished
// the run, so the current attempt must not touch it.
func concluded(err error) bool {
	return errors.Is(err, store.ErrNotQueued) || errors.Is(err, store.ErrRunFinished)
}

// settled aligns the scenario with a run finished by an ingested result and
// returns that run unchanged. A run that is not terminal is returned with
// cause.
func (o *Orchestrator) settled(ctx context.Context, scenarioID, runID int64, cause error) (*store.SolverRun, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	if !run.Status.Terminal() {
		return run, cause
	}
	if err := o.store.SetScenarioStatus(ctx, nil, scenarioID, store.ScenarioStatus(run.Status)); err != nil {
		return nil, err
	}
	return run, nil
}

// refreshed returns the current run row together with cause.
func (o *Orchestrator) refreshed(ctx context.Context, runID int64, cause error) (*store.SolverRun, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return run, cause
}

// Ingest validates and stores a run result in one transaction.
func (o *Orchestrator) Ingest(ctx context.Context, result *store.IngestResult) (*store.IngestOutcome, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.ingest",
		trace.WithAttributes(
			attribute.Int64("run.id", result.RunID),
			attribute.Int("assignments", len(result.Assignments)),
		))
	defer span.End()

	if err := validate(result); err != nil {
		return nil, err
	}

	outcome, err := o.store.IngestRunResult(ctx, result)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	o.metrics.ingested.Add(ctx, int64(outcome.AssignmentsInserted))
	o.metrics.finished(ctx, string(result.Status))
	return outcome, nil
}

func validate(r *store.IngestResult) error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidResult, r.Status)
	}
	// Ingestion finishes the run and drops its queue item.
	if !r.Status.Terminal() {
		return fmt.Errorf("%w: status %q is not final", ErrInvalidResult, r.Status)
	}
	if r.WallTimeSec != nil && *r.WallTimeSec < 0 {
		return fmt.Errorf("%w: negative wall time", ErrInvalidResult)
	}
	for i, a := range r.Assignments {
		if a.Source != "" && !a.Source.Valid() {
			return fmt.Errorf("%w: assignment %d has unknown source %q", ErrInvalidResult, i, a.Source)
		}
	}
	if k := r.Kpi; k != nil {
		if k.AvgSatisfaction < 0 || k.AvgSatisfaction > 100 {
			return fmt.Errorf("%w: avg_satisfaction %d outside 0..100", ErrInvalidResult, k.AvgSatisfaction)
		}
		if k.UnderstaffTotal < 0 || k.OvertimeTotal < 0 || k.NightViolations < 0 {
			return fmt.Errorf("%w: negative kpi total", ErrInvalidResult)
		}
	}
	return nil
}
