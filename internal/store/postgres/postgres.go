// Package postgres implements the store interfaces using PostgreSQL.
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

// foreignKeyViolation is the SQLSTATE of a failed FK check.
const foreignKeyViolation = "23503"

// Store provides PostgreSQL-backed implementations of all repositories.
type Store struct {
	db *sql.DB

	maxAttempts       int
	visibilityTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithQueuePolicy overrides the run queue retry policy.
// Non-positive values keep the defaults.
func WithQueuePolicy(maxAttempts int, visibilityTimeout time.Duration) Option {
	return func(s *Store) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if visibilityTimeout > 0 {
			s.visibilityTimeout = visibilityTimeout
		}
	}
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newStore(db, opts...), nil
}

func newStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:                db,
		maxAttempts:       MaxAttempts,
		visibilityTimeout: VisibilityTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying pool, used to run migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginTx starts a transaction.
func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) getExecutor(tx store.DBTransaction) store.DBTransaction {
	if tx != nil {
		return tx
	}
	return s.db
}

// notFound maps sql.ErrNoRows to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// expectRow returns store.ErrNotFound when an UPDATE or DELETE touched nothing.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// invalidReference wraps FK violations in store.ErrInvalidReference.
func invalidReference(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s", store.ErrInvalidReference, pqErr.Detail)
	}
	return err
}
