package store

import (
	"context"
	"time"
)

// RunQueue is the durable retry handle of in-flight solver runs.
// Implementations must use SELECT ... FOR UPDATE SKIP LOCKED semantics.
type RunQueue interface {
	// Enqueue adds a run to the queue, invisible until visibleAfter.
	Enqueue(ctx context.Context, tx DBTransaction, runID int64, visibleAfter time.Time) (int64, error)

	// DequeueBatch claims up to 'limit' visible runs atomically.
	// Returns nil slice if queue is empty.
	DequeueBatch(ctx context.Context, limit int) ([]QueueItem, error)

	// Complete removes a run from the queue.
	Complete(ctx context.Context, tx DBTransaction, runID int64) error

	// Retry reschedules a run after a failed attempt with exponential backoff.
	// When attempts are exhausted the run and its scenario are marked failed,
	// the item is removed and exhausted is true. A run that is no longer
	// queued is not modified; ErrNotQueued is returned instead.
	Retry(ctx context.Context, tx DBTransaction, runID int64, errMsg string) (exhausted bool, err error)

	// SetVisibleAfter extends the visibility timeout (heartbeat).
	SetVisibleAfter(ctx context.Context, tx DBTransaction, runID int64, visibleAfter time.Time) error

	// Count tracks count of items in queue
	Count(ctx context.Context) (int64, error)
}

// QueueItem represents a claimed run from the queue.
type QueueItem struct {
	RunID   int64
	Attempt int
}
