package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"weather-insight/datasource"
	"weather-insight/models"
)

// stats counts cache hits and misses
type stats struct {
	mutex          sync.Mutex
	cacheHitCount  int
	cacheMissCount int
}

func (s *stats) hit() {
	s.mutex.Lock()
	s.cacheHitCount++
	s.mutex.Unlock()
}

func (s *stats) miss() {
	s.mutex.Lock()
	s.cacheMissCount++
	s.mutex.Unlock()
}

// CacheStats returns statistics about cache hits and misses
func (s *stats) CacheStats() (hits, misses int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.cacheHitCount, s.cacheMissCount
}

// Key builds the cache key for an endpoint and location. Locations are
// compared case-insensitively.
func Key(endpoint, location string) string {
	return endpoint + ":" + strings.ToLower(strings.TrimSpace(location))
}

// load reads and decodes key; any backend or decode error counts as a miss
func load(ctx context.Context, backend Backend, logger *slog.Logger, key string, out any) bool {
	raw, found, err := backend.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func store(ctx context.Context, backend Backend, logger *slog.Logger, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := backend.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// CachedWeatherProvider wraps a WeatherProvider and adds caching functionality
type CachedWeatherProvider struct {
	stats
	source        datasource.WeatherProvider
	backend       Backend
	cacheDuration time.Duration
	logger        *slog.Logger
}

// NewCachedWeatherProvider creates a new cached wrapper around a weather provider
func NewCachedWeatherProvider(source datasource.WeatherProvider, backend Backend, cacheDuration time.Duration, logger *slog.Logger) *CachedWeatherProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedWeatherProvider{
		source:        source,
		backend:       backend,
		cacheDuration: cacheDuration,
		logger:        logger,
	}
}

// Name returns the name of the underlying provider with [Cached] suffix
func (c *CachedWeatherProvider) Name() string {
	return c.source.Name() + " [Cached]"
}

// GetWeather returns current conditions, using the cache when available.
// Failed lookups are never stored.
func (c *CachedWeatherProvider) GetWeather(ctx context.Context, location string) (models.CurrentConditions, error) {
	key := Key("current", location)

	var cached models.CurrentConditions
	if load(ctx, c.backend, c.logger, key, &cached) {
		c.hit()
		c.logger.Debug("cache hit", "key", key, "provider", c.source.Name(), "age", time.Since(cached.FetchedAt).Round(time.Second))
		return cached, nil
	}

	c.miss()
	c.logger.Debug("cache miss, fetching fresh data", "key", key, "provider", c.source.Name())

	data, err := c.source.GetWeather(ctx, location)
	if err != nil {
		return models.CurrentConditions{}, err
	}

	store(ctx, c.backend, c.logger, key, data, c.cacheDuration)
	return data, nil
}

// Ensure CachedWeatherProvider implements the WeatherProvider interface
var _ datasource.WeatherProvider = (*CachedWeatherProvider)(nil)
