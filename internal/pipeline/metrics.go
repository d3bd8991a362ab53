package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pomflow/backend/internal/pipeline"

type metrics struct {
	evaluations   metric.Int64Counter
	fetchFailures metric.Int64Counter
}

// newMetrics registers the pipeline counters on the global meter provider.
// Until a provider is installed these are no-ops.
func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	m := &metrics{}
	var err error
	if m.evaluations, err = meter.Int64Counter("pipeline.evaluations",
		metric.WithDescription("Pipeline evaluations by outcome (committed, stale, canceled)")); err != nil {
		otel.Handle(err)
	}
	if m.fetchFailures, err = meter.Int64Counter("pipeline.fetch_failures",
		metric.WithDescription("Collection reads that failed during evaluation")); err != nil {
		otel.Handle(err)
	}
	return m
}

func (m *metrics) evaluated(ctx context.Context, outcome string) {
	if m.evaluations != nil {
		m.evaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m *metrics) fetchFailed(ctx context.Context, collection string) {
	if m.fetchFailures != nil {
		m.fetchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
	}
}
