package datasource

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimitedProviderBurst(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	p := NewOpenWeatherMapProvider("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	limited := NewRateLimitedProvider(p, 0.1, 0.1, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := limited.GetWeather(ctx, "Pristina"); err != nil {
			t.Fatalf("call %d within burst failed: %v", i, err)
		}
	}

	// the bucket is empty and refills every 10s, so a short deadline must expire first
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := limited.GetWeather(ctx, "Pristina"); err == nil {
		t.Fatal("expected rate limit wait to fail")
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", got)
	}

	// forecast has its own bucket
	if _, err := limited.FetchForecast(context.Background(), "Pristina"); err != nil {
		t.Fatalf("forecast call failed: %v", err)
	}
}

func TestRateLimitedProviderName(t *testing.T) {
	limited := NewRateLimitedProvider(NewOpenWeatherMapProvider("k"), 1, 1, 0)
	if got := limited.Name(); got != "OpenWeatherMap [Rate Limited]" {
		t.Fatalf("unexpected name %q", got)
	}
}
