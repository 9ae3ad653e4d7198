package cache

import (
	"context"
	"log/slog"
	"time"

	"weather-insight/datasource"
	"weather-insight/models"
)

// CachedForecastSource wraps a ForecastSource and adds caching functionality
type CachedForecastSource struct {
	stats
	source        datasource.ForecastSource
	backend       Backend
	cacheDuration time.Duration
	logger        *slog.Logger
}

// NewCachedForecastSource creates a new cached wrapper around a forecast source
func NewCachedForecastSource(source datasource.ForecastSource, backend Backend, cacheDuration time.Duration, logger *slog.Logger) *CachedForecastSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedForecastSource{
		source:        source,
		backend:       backend,
		cacheDuration: cacheDuration,
		logger:        logger,
	}
}

// Name returns the name of the underlying forecast source with [Cached] suffix
func (c *CachedForecastSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// FetchForecast returns the raw forecast samples, using the cache when available
func (c *CachedForecastSource) FetchForecast(ctx context.Context, location string) ([]models.ForecastSample, error) {
	key := Key("forecast", location)

	var cached []models.ForecastSample
	if load(ctx, c.backend, c.logger, key, &cached) {
		c.hit()
		c.logger.Debug("forecast cache hit", "key", key, "provider", c.source.Name(), "samples", len(cached))
		return cached, nil
	}

	c.miss()
	c.logger.Debug("forecast cache miss, fetching fresh data", "key", key, "provider", c.source.Name())

	samples, err := c.source.FetchForecast(ctx, location)
	if err != nil {
		return nil, err
	}

	store(ctx, c.backend, c.logger, key, samples, c.cacheDuration)
	return samples, nil
}

// Ensure CachedForecastSource implements ForecastSource
var _ datasource.ForecastSource = (*CachedForecastSource)(nil)
