// Package worker resumes solver runs left on the run queue.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shiftplane/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Queue is the part of store.RunQueue the agent uses.
type Queue interface {
	DequeueBatch(ctx context.Context, limit int) ([]store.QueueItem, error)
	SetVisibleAfter(ctx context.Context, tx store.DBTransaction, runID int64, visibleAfter time.Time) error
}

// Runner executes a claimed run. Retry, failure and queue removal are the
// runner's responsibility; the agent only keeps the claim alive.
type Runner interface {
	Resume(ctx context.Context, runID int64) (*store.SolverRun, error)
}

// AgentConfig holds configuration for the worker agent.
type AgentConfig struct {
	ID                  string
	Concurrency         int
	PollInterval        time.Duration
	MaxBackoff          time.Duration // Maximum backoff when queue is empty (default: 30s)
	HeartbeatInterval   time.Duration // Interval between heartbeat calls (default: 2m)
	VisibilityExtension time.Duration // How long to extend visibility on heartbeat (default: 5m)
	RunTimeout          time.Duration // Upper bound for one resumed run (default: 10m)
}

// Agent is the pull-loop that drains the run queue.
type Agent struct {
	queue  Queue
	runner Runner
	config AgentConfig
	logger *slog.Logger
	tracer trace.Tracer
	done   chan struct{}
}

// New creates a new worker agent.
func New(q Queue, r Runner, config AgentConfig, logger *slog.Logger) *Agent {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 2 * time.Minute
	}
	if config.VisibilityExtension <= 0 {
		config.VisibilityExtension = 5 * time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		queue:  q,
		runner: r,
		config: config,
		logger: logger.With("agent_id", config.ID),
		tracer: otel.Tracer("shiftplane/worker"),
		done:   make(chan struct{}),
	}
}

// Run starts the main pull-loop. It blocks until the context is cancelled.
// After cancellation no new runs are claimed and in-flight runs finish.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting", "concurrency", a.config.Concurrency)

	sem := make(chan struct{}, a.config.Concurrency)
	var wg sync.WaitGroup

	// Signals that a slot became available.
	pollNow := make(chan struct{}, 1)

	// Grows while the queue is empty, resets when work is found.
	currentBackoff := a.config.PollInterval

	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
		}
	}

	triggerPoll()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("context cancelled, waiting for in-flight runs")
			wg.Wait()
			close(a.done)
			return ctx.Err()

		case <-time.After(currentBackoff):
			triggerPoll()

		case <-pollNow:
			availableSlots := a.config.Concurrency - len(sem)
			if availableSlots <= 0 {
				continue
			}

			items, err := a.queue.DequeueBatch(ctx, availableSlots)
			if err != nil {
				a.logger.Error("dequeue failed", "error", err)
				continue
			}

			if len(items) == 0 {
				currentBackoff = currentBackoff * 2
				if currentBackoff > a.config.MaxBackoff {
					currentBackoff = a.config.MaxBackoff
				}
				continue
			}

			currentBackoff = a.config.PollInterval
			a.logger.Info("claimed runs", "count", len(items))

			for _, item := range items {
				sem <- struct{}{}

				wg.Add(1)
				go func(item store.QueueItem) {
					defer wg.Done()
					defer func() {
						<-sem
						triggerPoll()
					}()
					a.processItem(ctx, item)
				}(item)
			}

			if len(items) < availableSlots {
				triggerPoll()
			}
		}
	}
}

// Done returns a channel that is closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// processItem resumes one claimed run.
func (a *Agent) processItem(ctx context.Context, item store.QueueItem) {
	// A shutdown must not abort a run halfway through ingestion.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.RunTimeout)
	defer cancel()

	runCtx, span := a.tracer.Start(runCtx, "worker.resume_run",
		trace.WithAttributes(
			attribute.Int64("run.id", item.RunID),
			attribute.Int("queue.attempt", item.Attempt),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	logger := a.logger.With("run_id", item.RunID, "queue_attempt", item.Attempt)
	logger.Info("resuming run")

	heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
	defer cancelHeartbeat()
	go a.runHeartbeat(heartbeatCtx, item.RunID)

	run, err := a.runner.Resume(runCtx, item.RunID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("run attempt did not complete", "error", err)
		return
	}
	span.SetAttributes(attribute.String("run.status", string(run.Status)))
	logger.Info("run resumed", "status", run.Status, "phase", run.Phase)
}

// runHeartbeat keeps a claimed run invisible to other workers while it executes.
func (a *Agent) runHeartbeat(ctx context.Context, runID int64) {
	ticker := time.NewTicker(a.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			visibleAfter := time.Now().Add(a.config.VisibilityExtension)
			if err := a.queue.SetVisibleAfter(context.Background(), nil, runID, visibleAfter); err != nil {
				a.logger.Warn("heartbeat failed", "run_id", runID, "error", err)
			}
		}
	}
}
