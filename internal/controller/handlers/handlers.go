// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"shiftplane/internal/logger"
	"shiftplane/internal/orchestrator"
	"shiftplane/internal/store"
	"shiftplane/pkg/api"
)

// StoreFactory combines the interfaces needed for the controller to function.
type StoreFactory interface {
	Ping(ctx context.Context) error
	store.ScenarioStore
	store.RunStore
	store.ReferenceStore
}

// Runner executes and finalizes solver runs.
type Runner interface {
	StartRun(ctx context.Context, req orchestrator.StartRunRequest) (*store.SolverRun, error)
	Ingest(ctx context.Context, result *store.IngestResult) (*store.IngestOutcome, error)
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store     StoreFactory
	runs      Runner
	logger    *slog.Logger
	ingestURL func(runID int64) string
}

// Option configures Handlers.
type Option func(*Handlers)

// WithIngestURL sets how run responses advertise their ingestion callback.
func WithIngestURL(fn func(runID int64) string) Option {
	return func(h *Handlers) { h.ingestURL = fn }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) { h.logger = l }
}

// New creates a new Handlers instance.
func New(s StoreFactory, runs Runner, opts ...Option) *Handlers {
	h := &Handlers{store: s, runs: runs, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handlers) log(r *http.Request) *slog.Logger {
	return logger.FromContext(r.Context(), h.logger)
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// httpErrorDetails is httpError with the underlying cause attached.
func (h *Handlers) httpErrorDetails(w http.ResponseWriter, message string, code int, err error) {
	h.respondJson(w, code, api.ErrorResponse{
		Error:   message,
		Code:    strconv.Itoa(code),
		Details: err.Error(),
	})
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter.
func queryID(r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}
