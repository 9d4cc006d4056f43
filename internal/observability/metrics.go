// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// QueueDepthMetric is the gauge reporting pending run_queue items.
const QueueDepthMetric = "shiftplane.run_queue.depth"

// InitMetrics installs a global meter provider backed by a Prometheus
// exporter. It returns the /metrics handler and a shutdown function.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// QueueCounter reports the number of items waiting in a queue.
type QueueCounter interface {
	Count(ctx context.Context) (int64, error)
}

// RegisterQueueDepth exposes q's size as an observable gauge, sampled on every scrape.
func RegisterQueueDepth(q QueueCounter) error {
	meter := otel.Meter("shiftplane")
	_, err := meter.Int64ObservableGauge(
		QueueDepthMetric,
		otelmetric.WithDescription("Solver runs waiting in the run queue"),
		otelmetric.WithInt64Callback(func(ctx context.Context, o otelmetric.Int64Observer) error {
			n, err := q.Count(ctx)
			if err != nil {
				return err
			}
			o.Observe(n)
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to register queue depth gauge: %w", err)
	}
	return nil
}
