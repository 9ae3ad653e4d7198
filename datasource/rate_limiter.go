package datasource

import (
	"context"
	"fmt"

	"weather-insight/models"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with one token bucket per endpoint
type RateLimitedProvider struct {
	provider        Provider
	weatherLimiter  *rate.Limiter
	forecastLimiter *rate.Limiter
	name            string
}

// NewRateLimitedProvider creates a provider that implements both interfaces with rate limiting.
// weatherRPS and forecastRPS are the maximum requests per second for each endpoint
// (fractional for less than one per second); burst is the maximum burst size.
func NewRateLimitedProvider(provider Provider, weatherRPS, forecastRPS float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		provider:        provider,
		weatherLimiter:  rate.NewLimiter(rate.Limit(weatherRPS), burst),
		forecastLimiter: rate.NewLimiter(rate.Limit(forecastRPS), burst),
		name:            fmt.Sprintf("%s [Rate Limited]", provider.Name()),
	}
}

// GetWeather waits for the current-conditions bucket or context cancellation
func (r *RateLimitedProvider) GetWeather(ctx context.Context, location string) (models.CurrentConditions, error) {
	if err := r.weatherLimiter.Wait(ctx); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.provider.GetWeather(ctx, location)
}

// FetchForecast waits for the forecast bucket or context cancellation
func (r *RateLimitedProvider) FetchForecast(ctx context.Context, location string) ([]models.ForecastSample, error) {
	if err := r.forecastLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.provider.FetchForecast(ctx, location)
}

// Name returns the provider name
func (r *RateLimitedProvider) Name() string {
	return r.name
}

var _ Provider = (*RateLimitedProvider)(nil)
