package worker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/plenacare/plantao/pkg/models"
)

// Metrics holds the orchestrator counters. The otel global provider is a
// noop unless the operator installs one, so counting is always safe.
type Metrics struct {
	messages    metric.Int64Counter
	commits     metric.Int64Counter
	cancels     metric.Int64Counter
	replays     metric.Int64Counter
	opFailures  metric.Int64Counter
}

// NewMetrics registers the counters on the global meter.
func NewMetrics() *Metrics {
	meter := otel.Meter("github.com/plenacare/plantao")

	messages, _ := meter.Int64Counter("plantao.messages",
		metric.WithDescription("Inbound messages processed, by gate, flow and event"))
	commits, _ := meter.Int64Counter("plantao.confirmations.committed",
		metric.WithDescription("Confirmations resolved affirmatively and executed"))
	cancels, _ := meter.Int64Counter("plantao.confirmations.cancelled",
		metric.WithDescription("Confirmations resolved negatively"))
	replays, _ := meter.Int64Counter("plantao.replays",
		metric.WithDescription("Duplicate message ids dropped by the idempotency window"))
	opFailures, _ := meter.Int64Counter("plantao.operation.failures",
		metric.WithDescription("External operations that failed during a resolution"))

	return &Metrics{
		messages:   messages,
		commits:    commits,
		cancels:    cancels,
		replays:    replays,
		opFailures: opFailures,
	}
}

// CountMessage records one processed message.
func (m *Metrics) CountMessage(ctx context.Context, gate int, outcome *models.FlowOutcome) {
	if m == nil {
		return
	}
	m.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("gate", gate),
		attribute.String("flow", string(outcome.Flow)),
		attribute.String("event", string(outcome.Event)),
	))
}

// CountResolution records the outcome of a pending resolution.
func (m *Metrics) CountResolution(ctx context.Context, outcome *models.FlowOutcome) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("flow", string(outcome.Flow)))
	switch outcome.Event {
	case models.EventCommitted:
		m.commits.Add(ctx, 1, attrs)
	case models.EventCancelled:
		m.cancels.Add(ctx, 1, attrs)
	case models.EventOperationFailed:
		m.opFailures.Add(ctx, 1, attrs)
	}
}

// CountReplay records a dropped duplicate.
func (m *Metrics) CountReplay(ctx context.Context) {
	if m == nil {
		return
	}
	m.replays.Add(ctx, 1)
}
