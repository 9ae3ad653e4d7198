package models

import (
	"time"
)

// CurrentConditions represents the current weather for a location as reported by the provider
type CurrentConditions struct {
	LocationName         string    `json:"locationName"`
	CountryCode          string    `json:"countryCode"`
	TemperatureC         float64   `json:"temperatureC"`
	FeelsLikeC           float64   `json:"feelsLikeC"`
	HumidityPct          float64   `json:"humidityPct"`
	WindSpeedMs          float64   `json:"windSpeedMs"`
	PressureHPa          float64   `json:"pressureHPa"`
	VisibilityM          float64   `json:"visibilityM"`
	ConditionCode        string    `json:"conditionCode"`        // provider icon code, e.g. "04d"
	ConditionDescription string    `json:"conditionDescription"` // short text description
	TempMaxC             float64   `json:"tempMaxC"`
	TempMinC             float64   `json:"tempMinC"`
	IconURL              string    `json:"iconUrl,omitempty"`
	FetchedAt            time.Time `json:"fetchedAt"`
}
