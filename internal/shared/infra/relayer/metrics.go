package relayer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics agrupa los instrumentos OpenTelemetry del relay.
type Metrics struct {
	published     metric.Int64Counter
	failed        metric.Int64Counter
	batchDuration metric.Float64Histogram
}

// NewMetrics usa el MeterProvider global.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter("phoneregistry/outbox"))
}

func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	published, err := meter.Int64Counter("outbox.events.published",
		metric.WithDescription("Eventos outbox publicados en el bus"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("outbox.events.failed",
		metric.WithDescription("Intentos de publicación fallidos"))
	if err != nil {
		return nil, err
	}
	batchDuration, err := meter.Float64Histogram("outbox.batch.duration", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{published: published, failed: failed, batchDuration: batchDuration}, nil
}

func (m *Metrics) eventPublished(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) eventFailed(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) batchDone(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Record(ctx, d.Seconds())
}
