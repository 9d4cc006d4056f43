package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	runsStarted  metric.Int64Counter
	runsFinished metric.Int64Counter
	solverTime   metric.Float64Histogram
	solverErrors metric.Int64Counter
	ingested     metric.Int64Counter
}

func newInstruments() (*instruments, error) {
	meter := otel.Meter("shiftplane/orchestrator")

	runsStarted, err := meter.Int64Counter("shiftplane.runs.started",
		metric.WithDescription("Solver runs created"))
	if err != nil {
		return nil, err
	}
	runsFinished, err := meter.Int64Counter("shiftplane.runs.finished",
		metric.WithDescription("Solver runs that reached a terminal status"))
	if err != nil {
		return nil, err
	}
	solverTime, err := meter.Float64Histogram("shiftplane.solver.duration",
		metric.WithDescription("Wall-clock duration of successful solver calls"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	solverErrors, err := meter.Int64Counter("shiftplane.solver.errors",
		metric.WithDescription("Failed solver calls"))
	if err != nil {
		return nil, err
	}
	ingested, err := meter.Int64Counter("shiftplane.assignments.ingested",
		metric.WithDescription("Assignment rows inserted by ingestion"))
	if err != nil {
		return nil, err
	}

	return &instruments{
		runsStarted:  runsStarted,
		runsFinished: runsFinished,
		solverTime:   solverTime,
		solverErrors: solverErrors,
		ingested:     ingested,
	}, nil
}

func (i *instruments) finished(ctx context.Context, status string) {
	i.runsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
