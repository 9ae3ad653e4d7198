package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"weather-insight/datasource"
	"weather-insight/models"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

type stubProvider struct {
	weatherErr  error
	forecastErr error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) GetWeather(context.Context, string) (models.CurrentConditions, error) {
	return models.CurrentConditions{LocationName: "Pristina"}, s.weatherErr
}

func (s stubProvider) FetchForecast(context.Context, string) ([]models.ForecastSample, error) {
	if s.forecastErr != nil {
		return nil, s.forecastErr
	}
	return []models.ForecastSample{{TimestampText: "2024-01-01 12:00:00"}}, nil
}

func newRecordingTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("rate limit wait canceled: %w", context.DeadlineExceeded), "canceled"},
		{&datasource.StatusError{Status: http.StatusNotFound}, "not_found"},
		{fmt.Errorf("wrapped: %w", &datasource.StatusError{Status: http.StatusUnauthorized}), "status_error"},
		{errors.New("connection refused"), "error"},
	}
	for _, tc := range cases {
		if got := Outcome(tc.err); got != tc.want {
			t.Errorf("Outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestInstrumentedProviderCountsAndTraces(t *testing.T) {
	sr, tp := newRecordingTracer()
	p := NewInstrumentedProvider(stubProvider{forecastErr: &datasource.StatusError{Status: http.StatusNotFound}}, tp.Tracer("test"))

	okBefore := counterValue(t, upstreamRequests.WithLabelValues(endpointCurrent, "ok"))
	nfBefore := counterValue(t, upstreamRequests.WithLabelValues(endpointForecast, "not_found"))

	if _, err := p.GetWeather(context.Background(), "Pristina"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.FetchForecast(context.Background(), "Pristina"); err == nil {
		t.Fatal("expected forecast error to pass through")
	}

	if got := counterValue(t, upstreamRequests.WithLabelValues(endpointCurrent, "ok")) - okBefore; got != 1 {
		t.Errorf("current ok delta = %v", got)
	}
	if got := counterValue(t, upstreamRequests.WithLabelValues(endpointForecast, "not_found")) - nfBefore; got != 1 {
		t.Errorf("forecast not_found delta = %v", got)
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "upstream.current" || spans[1].Name() != "upstream.forecast" {
		t.Errorf("unexpected span names %q, %q", spans[0].Name(), spans[1].Name())
	}
	if p.Name() != "stub" {
		t.Errorf("unexpected name %q", p.Name())
	}
}

func TestCycleMetricsCountsTerminalSnapshots(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewCycleMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	m.Listen(models.Snapshot{State: models.RequestState{Phase: models.PhaseLoading}})
	m.Listen(models.Snapshot{State: models.RequestState{Phase: models.PhaseSuccess}})
	m.Listen(models.Snapshot{State: models.RequestState{Phase: models.PhaseSuccess}})
	m.Listen(models.Snapshot{State: models.RequestState{Phase: models.PhaseFailed, Kind: models.FailureNotFound}})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	if len(rm.ScopeMetrics) != 1 || len(rm.ScopeMetrics[0].Metrics) != 1 {
		t.Fatalf("unexpected metrics %+v", rm.ScopeMetrics)
	}
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", rm.ScopeMetrics[0].Metrics[0].Data)
	}

	byPhase := map[string]int64{}
	for _, dp := range sum.DataPoints {
		phase, _ := dp.Attributes.Value("phase")
		byPhase[phase.AsString()] += dp.Value
	}
	if byPhase["success"] != 2 || byPhase["failed"] != 1 || byPhase["loading"] != 0 {
		t.Fatalf("unexpected counts %v", byPhase)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	sr, tp := newRecordingTracer()
	r := chi.NewRouter()
	r.Use(MetricsAndTracingMiddleware(tp.Tracer("test"), "weather-test"))
	r.Get("/api/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := counterValue(t, requestCounter.WithLabelValues("weather-test", "/api/items/{id}", http.MethodGet, "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/42", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if rec.Header().Get("Trace-ID") == "" {
		t.Error("expected Trace-ID header")
	}
	if got := counterValue(t, requestCounter.WithLabelValues("weather-test", "/api/items/{id}", http.MethodGet, "418")) - before; got != 1 {
		t.Errorf("request counter delta = %v", got)
	}
	if len(sr.Ended()) != 1 {
		t.Fatalf("expected 1 span, got %d", len(sr.Ended()))
	}
}
