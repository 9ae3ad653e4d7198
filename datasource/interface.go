package datasource

import (
	"context"

	"weather-insight/models"
)

// WeatherProvider is an interface for services that can fetch current weather data
type WeatherProvider interface {
	// GetWeather fetches current conditions for a location name
	GetWeather(ctx context.Context, location string) (models.CurrentConditions, error)

	// Name returns the provider's name
	Name() string
}

// ForecastSource is an interface for services that can fetch the raw forecast series
type ForecastSource interface {
	// FetchForecast fetches the 3-hour forecast samples for a location name, in chronological order
	FetchForecast(ctx context.Context, location string) ([]models.ForecastSample, error)

	// Name returns the source's name
	Name() string
}

// Provider is implemented by upstreams that serve both endpoints
type Provider interface {
	WeatherProvider
	ForecastSource
}
