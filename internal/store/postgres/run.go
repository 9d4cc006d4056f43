package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"shiftplane/internal/store"
)

const runColumns = `solver_run_id, scenario_id, policy_set_id, status, phase, attempt, seed, workers,
	wall_time_sec, code_version, logs_url, error_message, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*store.SolverRun, error) {
	var run store.SolverRun
	err := row.Scan(
		&run.ID, &run.ScenarioID, &run.PolicySetID, &run.Status, &run.Phase, &run.Attempt,
		&run.Seed, &run.Workers, &run.WallTimeSec, &run.CodeVersion, &run.LogsURL,
		&run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) CreateRun(ctx context.Context, tx store.DBTransaction, run *store.SolverRun) error {
	if run.Status == "" {
		run.Status = store.RunStatusQueued
	}
	if run.Phase == "" {
		run.Phase = store.RunPhaseCreated
	}

	query := `
		INSERT INTO solver_runs (scenario_id, policy_set_id, status, phase, seed, workers, code_version, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING solver_run_id, started_at
	`
	err := s.getExecutor(tx).QueryRowContext(ctx, query,
		run.ScenarioID, run.PolicySetID, run.Status, run.Phase, run.Seed, run.Workers, run.CodeVersion,
	).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run for scenario %d: %w", run.ScenarioID, invalidReference(err))
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id int64) (*store.SolverRun, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM solver_runs WHERE solver_run_id = $1", id)
	run, err := scanRun(row)
	if err != nil {
		return nil, notFound(err)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, scenarioID *int64) ([]store.SolverRun, error) {
	query := "SELECT " + runColumns + " FROM solver_runs"
	var args []interface{}
	if scenarioID != nil {
		query += " WHERE scenario_id = $1"
		args = append(args, *scenarioID)
	}
	query += " ORDER BY solver_run_id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []store.SolverRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *Store) BeginAttempt(ctx context.Context, tx store.DBTransaction, id int64) (int, error) {
	query := `
		UPDATE solver_runs
		SET status = $1, phase = $2, attempt = attempt + 1, started_at = COALESCE(started_at, NOW())
		WHERE solver_run_id = $3
		RETURNING attempt
	`
	var attempt int
	err := s.getExecutor(tx).QueryRowContext(ctx, query,
		store.RunStatusRunning, store.RunPhaseSolving, id,
	).Scan(&attempt)
	if err != nil {
		return 0, notFound(err)
	}
	return attempt, nil
}

// SetRunPhase moves a queued or running run to phase. Terminal runs are
// left alone and store.ErrRunFinished is returned.
func (s *Store) SetRunPhase(ctx context.Context, tx store.DBTransaction, id int64, phase store.RunPhase) error {
	executor := s.getExecutor(tx)
	res, err := executor.ExecContext(ctx,
		"UPDATE solver_runs SET phase = $1 WHERE solver_run_id = $2 AND status IN ($3, $4)",
		phase, id, store.RunStatusQueued, store.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to set run %d phase: %w", id, err)
	}
	return unfinished(ctx, executor, id, res)
}

// unfinished explains a status-guarded run UPDATE: nil when a row changed,
// store.ErrNotFound when the run is gone, store.ErrRunFinished otherwise.
func unfinished(ctx context.Context, executor store.DBTransaction, id int64, res sql.Result) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var status store.RunStatus
	err := executor.QueryRowContext(ctx, "SELECT status FROM solver_runs WHERE solver_run_id = $1", id).Scan(&status)
	if err != nil {
		return notFound(err)
	}
	return fmt.Errorf("run %d is %s: %w", id, status, store.ErrRunFinished)
}

func (s *Store) FailRun(ctx context.Context, tx store.DBTransaction, id int64, errMsg string) error {
	executor := s.getExecutor(tx)

	if _, err := executor.ExecContext(ctx, "DELETE FROM run_queue WHERE solver_run_id = $1", id); err != nil {
		return fmt.Errorf("failed to dequeue failed run %d: %w", id, err)
	}

	res, err := executor.ExecContext(ctx, `
		UPDATE solver_runs
		SET status = $1, phase = $2, error_message = $3, finished_at = NOW()
		WHERE solver_run_id = $4 AND status IN ($5, $6)
	`, store.RunStatusFailed, store.RunPhaseDone, errMsg, id, store.RunStatusQueued, store.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark run %d failed: %w", id, err)
	}
	return unfinished(ctx, executor, id, res)
}

// IngestRunResult writes the run update, assignments, KPI and queue removal
// in one transaction. Assignments already present are skipped; the KPI row
// is replaced.
func (s *Store) IngestRunResult(ctx context.Context, result *store.IngestResult) (*store.IngestOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE solver_runs
		SET status = $2,
		    phase = $3,
		    wall_time_sec = COALESCE($4, wall_time_sec),
		    logs_url = COALESCE($5, logs_url),
		    finished_at = NOW()
		WHERE solver_run_id = $1
	`, result.RunID, result.Status, store.RunPhaseDone, result.WallTimeSec, result.LogsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to update run %d: %w", result.RunID, err)
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}

	outcome := &store.IngestOutcome{}
	for _, a := range result.Assignments {
		source := a.Source
		if source == "" {
			source = store.AssignmentSourceModel
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO assignments (solver_run_id, day, shift_id, staff_id, is_overtime, source)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (solver_run_id, day, shift_id, staff_id) DO NOTHING
		`, result.RunID, a.Day, a.ShiftID, a.StaffID, a.IsOvertime, source)
		if err != nil {
			return nil, fmt.Errorf("failed to insert assignment for run %d: %w", result.RunID, invalidReference(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		outcome.AssignmentsInserted += int(n)
	}

	if k := result.Kpi; k != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kpi (solver_run_id, avg_satisfaction, understaff_total, overtime_total, night_violations, senior_coverage_ok)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (solver_run_id) DO UPDATE SET
				avg_satisfaction = EXCLUDED.avg_satisfaction,
				understaff_total = EXCLUDED.understaff_total,
				overtime_total = EXCLUDED.overtime_total,
				night_violations = EXCLUDED.night_violations,
				senior_coverage_ok = EXCLUDED.senior_coverage_ok
		`, result.RunID, k.AvgSatisfaction, k.UnderstaffTotal, k.OvertimeTotal, k.NightViolations, k.SeniorCoverageOK)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert kpi for run %d: %w", result.RunID, err)
		}
		outcome.KpiUpserted = true
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_queue WHERE solver_run_id = $1", result.RunID); err != nil {
		return nil, fmt.Errorf("failed to dequeue run %d: %w", result.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Store) ListAssignments(ctx context.Context, runID int64) ([]store.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT assignment_id, solver_run_id, day, shift_id, staff_id, is_overtime, source
		FROM assignments
		WHERE solver_run_id = $1
		ORDER BY day, shift_id, staff_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []store.Assignment{}
	for rows.Next() {
		var a store.Assignment
		if err := rows.Scan(&a.ID, &a.SolverRunID, &a.Day, &a.ShiftID, &a.StaffID, &a.IsOvertime, &a.Source); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *Store) GetKpi(ctx context.Context, runID int64) (*store.Kpi, error) {
	var k store.Kpi
	err := s.db.QueryRowContext(ctx, `
		SELECT solver_run_id, avg_satisfaction, understaff_total, overtime_total, night_violations, senior_coverage_ok
		FROM kpi WHERE solver_run_id = $1
	`, runID).Scan(&k.SolverRunID, &k.AvgSatisfaction, &k.UnderstaffTotal, &k.OvertimeTotal, &k.NightViolations, &k.SeniorCoverageOK)
	if err != nil {
		return nil, notFound(err)
	}
	return &k, nil
}
