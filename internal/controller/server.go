// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"shiftplane/internal/controller/handlers"
	"shiftplane/internal/controller/middleware"
)

// Options tunes the HTTP surface.
type Options struct {
	// InternalSecret guards the ingestion callback when non-empty.
	InternalSecret string

	// RunRateLimit is requests per second per client on run creation; 0 disables it.
	RunRateLimit float64
	RunRateBurst int

	// WriteTimeout must exceed the solver timeout, since run creation waits for the solver.
	WriteTimeout time.Duration

	// Metrics is served at /metrics when set.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(addr string, h *handlers.Handlers, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      Routes(h, opts),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: opts.WriteTimeout,
		},
	}
}

// Routes builds the API mux wrapped in request-id and access logging.
func Routes(h *handlers.Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	// Scenarios
	mux.HandleFunc("POST /api/v1/scenarios", h.CreateScenario)
	mux.HandleFunc("GET /api/v1/scenarios", h.ListScenarios)
	mux.HandleFunc("GET /api/v1/scenarios/{id}", h.GetScenario)
	mux.HandleFunc("DELETE /api/v1/scenarios/{id}", h.DeleteScenario)

	// Solver runs
	createRun := http.Handler(http.HandlerFunc(h.CreateRun))
	if opts.RunRateLimit > 0 {
		createRun = middleware.NewRateLimiter(opts.RunRateLimit, opts.RunRateBurst).Middleware()(createRun)
	}
	mux.Handle("POST /api/v1/solver-runs", createRun)
	mux.HandleFunc("GET /api/v1/solver-runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/solver-runs/{id}", h.GetRun)

	// Ingestion callback for a trusted reporter.
	ingest := http.Handler(http.HandlerFunc(h.IngestResult))
	if opts.InternalSecret != "" {
		ingest = middleware.RequireInternalAuth(opts.InternalSecret)(ingest)
	}
	mux.Handle("POST /api/v1/solver-runs/{id}/ingest-result", ingest)

	// Outputs
	mux.HandleFunc("GET /api/v1/assignments", h.ListAssignments)
	mux.HandleFunc("GET /api/v1/kpi/{solver_run_id}", h.GetKpi)

	// Bulk reference data
	mux.HandleFunc("PUT /api/v1/units/{unit_id}/coverage/bulk", h.UpsertCoverage)
	mux.HandleFunc("GET /api/v1/units/{unit_id}/coverage", h.ListCoverage)
	mux.HandleFunc("POST /api/v1/availability/bulk", h.UpsertAvailability)
	mux.HandleFunc("POST /api/v1/preferences/bulk", h.UpsertPreferences)

	// Probes
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return middleware.RequestID(opts.Logger)(mux)
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
