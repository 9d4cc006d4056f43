package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shiftplane/internal/store"

	"github.com/lib/pq"
)

// Default retry policy
const (
	MaxAttempts       = 5
	VisibilityTimeout = 5 * time.Minute
	BaseBackoff       = 10 * time.Second
)

// Backoff returns the delay before the next attempt after attempt failures.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	return BaseBackoff * time.Duration(1<<attempt)
}

// Enqueue adds a run to run_queue.
func (s *Store) Enqueue(ctx context.Context, tx store.DBTransaction, runID int64, visibleAfter time.Time) (int64, error) {
	if visibleAfter.IsZero() {
		visibleAfter = time.Now()
	}

	query := `
		INSERT INTO run_queue (solver_run_id, visible_after)
		VALUES ($1, $2)
		ON CONFLICT (solver_run_id) DO UPDATE SET visible_after = EXCLUDED.visible_after
		RETURNING id
	`

	var id int64
	err := s.getExecutor(tx).QueryRowContext(ctx, query, runID, visibleAfter).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue run %d: %w", runID, err)
	}
	return id, nil
}

// DequeueBatch claims up to 'limit' visible runs atomically using SELECT ... FOR UPDATE SKIP LOCKED.
// Claimed items stay invisible for the visibility timeout.
func (s *Store) DequeueBatch(ctx context.Context, limit int) ([]store.QueueItem, error) {
	if limit <= 0 {
		limit = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, solver_run_id, attempt
		FROM run_queue
		WHERE visible_after <= NOW()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("batch dequeue query failed: %w", err)
	}
	defer rows.Close()

	var items []store.QueueItem
	var queueIDs []int64
	for rows.Next() {
		var queueID int64
		var item store.QueueItem
		if err := rows.Scan(&queueID, &item.RunID, &item.Attempt); err != nil {
			return nil, fmt.Errorf("batch dequeue scan failed: %w", err)
		}
		items = append(items, item)
		queueIDs = append(queueIDs, queueID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch dequeue rows error: %w", err)
	}

	if len(items) == 0 {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE run_queue
		SET visible_after = NOW() + ($1 * INTERVAL '1 second')
		WHERE id = ANY($2)
	`, s.visibilityTimeout.Seconds(), pq.Array(queueIDs))
	if err != nil {
		return nil, fmt.Errorf("batch visibility update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// Complete removes a run from the queue.
func (s *Store) Complete(ctx context.Context, tx store.DBTransaction, runID int64) error {
	_, err := s.getExecutor(tx).ExecContext(ctx, "DELETE FROM run_queue WHERE solver_run_id = $1", runID)
	return err
}

// Retry reschedules a run with exponential backoff (10s * 2^attempt) or,
// once attempts are exhausted, fails it for good. A run without a queue
// item is left untouched and store.ErrNotQueued is returned. Without a
// caller transaction it runs in its own.
func (s *Store) Retry(ctx context.Context, tx store.DBTransaction, runID int64, errMsg string) (bool, error) {
	if tx != nil {
		return s.retry(ctx, tx, runID, errMsg)
	}

	own, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer own.Rollback()

	exhausted, err := s.retry(ctx, own, runID, errMsg)
	if err != nil {
		return exhausted, err
	}
	return exhausted, own.Commit()
}

func (s *Store) retry(ctx context.Context, executor store.DBTransaction, runID int64, errMsg string) (bool, error) {
	var attempt int
	err := executor.QueryRowContext(ctx, "SELECT attempt FROM run_queue WHERE solver_run_id = $1", runID).Scan(&attempt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("run %d: %w", runID, store.ErrNotQueued)
	}
	if err != nil {
		return false, err
	}

	if attempt+1 < s.maxAttempts {
		_, err = executor.ExecContext(ctx, `
			UPDATE run_queue
			SET attempt = attempt + 1, visible_after = NOW() + ($1 * INTERVAL '1 second')
			WHERE solver_run_id = $2
		`, Backoff(attempt).Seconds(), runID)
		if err != nil {
			return false, fmt.Errorf("failed to reschedule run %d: %w", runID, err)
		}

		_, err = executor.ExecContext(ctx, `
			UPDATE solver_runs SET status = $1, phase = $2, error_message = $3
			WHERE solver_run_id = $4
		`, store.RunStatusQueued, store.RunPhaseCreated, errMsg, runID)
		if err != nil {
			return false, fmt.Errorf("failed to requeue run %d: %w", runID, err)
		}

		_, err = executor.ExecContext(ctx, `
			UPDATE scenarios SET status = $1
			WHERE scenario_id = (SELECT scenario_id FROM solver_runs WHERE solver_run_id = $2)
		`, store.ScenarioStatusQueued, runID)
		return false, err
	}

	if err := s.FailRun(ctx, executor, runID, errMsg); err != nil {
		return true, err
	}

	_, err = executor.ExecContext(ctx, `
		UPDATE scenarios SET status = $1
		WHERE scenario_id = (SELECT scenario_id FROM solver_runs WHERE solver_run_id = $2)
	`, store.ScenarioStatusFailed, runID)
	return true, err
}

// SetVisibleAfter extends the heartbeat.
func (s *Store) SetVisibleAfter(ctx context.Context, tx store.DBTransaction, runID int64, visibleAfter time.Time) error {
	_, err := s.getExecutor(tx).ExecContext(ctx, `
		UPDATE run_queue
		SET visible_after = $1
		WHERE solver_run_id = $2
	`, visibleAfter, runID)
	return err
}

// Count returns the number of queued runs.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_queue").Scan(&count)
	return count, err
}
