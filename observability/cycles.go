package observability

import (
	"context"

	"weather-insight/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CycleMetrics counts finished query cycles by phase and failure kind
type CycleMetrics struct {
	cycles metric.Int64Counter
}

// NewCycleMetrics creates the counter on meter, or on the global meter provider when meter is nil.
// Exposed through the Prometheus exporter as weather_query_cycles_total.
func NewCycleMetrics(meter metric.Meter) (*CycleMetrics, error) {
	if meter == nil {
		meter = otel.Meter("weather-insight/orchestrator")
	}
	cycles, err := meter.Int64Counter("weather.query.cycles",
		metric.WithDescription("Finished query cycles by phase."),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}
	return &CycleMetrics{cycles: cycles}, nil
}

// Listen counts terminal snapshots
func (m *CycleMetrics) Listen(snap models.Snapshot) {
	if !snap.State.Phase.Terminal() {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("phase", string(snap.State.Phase))}
	if snap.State.Kind != "" {
		attrs = append(attrs, attribute.String("kind", string(snap.State.Kind)))
	}
	m.cycles.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
