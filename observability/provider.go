package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"weather-insight/datasource"
	"weather-insight/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_upstream_requests_total",
			Help: "Upstream weather API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_upstream_request_duration_seconds",
			Help:    "Upstream weather API latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() { prometheus.MustRegister(upstreamRequests, upstreamDuration) }

const (
	endpointCurrent  = "current"
	endpointForecast = "forecast"
)

// InstrumentedProvider records a span, a counter and a latency sample for every upstream call
type InstrumentedProvider struct {
	provider datasource.Provider
	tracer   oteltrace.Tracer
}

// NewInstrumentedProvider wraps provider. A nil tracer uses the global provider.
func NewInstrumentedProvider(provider datasource.Provider, tracer oteltrace.Tracer) *InstrumentedProvider {
	if tracer == nil {
		tracer = otel.Tracer("weather-insight/datasource")
	}
	return &InstrumentedProvider{provider: provider, tracer: tracer}
}

func (p *InstrumentedProvider) Name() string {
	return p.provider.Name()
}

func (p *InstrumentedProvider) GetWeather(ctx context.Context, location string) (models.CurrentConditions, error) {
	ctx, done := p.observe(ctx, endpointCurrent, location)
	cc, err := p.provider.GetWeather(ctx, location)
	done(err)
	return cc, err
}

func (p *InstrumentedProvider) FetchForecast(ctx context.Context, location string) ([]models.ForecastSample, error) {
	ctx, done := p.observe(ctx, endpointForecast, location)
	samples, err := p.provider.FetchForecast(ctx, location)
	if err == nil {
		oteltrace.SpanFromContext(ctx).SetAttributes(attribute.Int("weather.samples", len(samples)))
	}
	done(err)
	return samples, err
}

func (p *InstrumentedProvider) observe(ctx context.Context, endpoint, location string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "upstream."+endpoint, oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("weather.provider", p.provider.Name()),
			attribute.String("weather.location", location),
		))

	return ctx, func(err error) {
		outcome := Outcome(err)
		upstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
		span.SetAttributes(attribute.String("weather.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}
}

// Outcome classifies an upstream result for metric labels
func Outcome(err error) string {
	var se *datasource.StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		return "not_found"
	case errors.As(err, &se):
		return "status_error"
	default:
		return "error"
	}
}

var _ datasource.Provider = (*InstrumentedProvider)(nil)
