package models

// ForecastSample is one raw 3-hour record from the provider's forecast series
type ForecastSample struct {
	TimestampText        string  `json:"timestampText"` // "2006-01-02 15:04:05" in the feed's local time
	TemperatureC         float64 `json:"temperatureC"`
	ConditionCode        string  `json:"conditionCode"`
	ConditionDescription string  `json:"conditionDescription"`
}

// DailyForecastEntry is the representative weather for a single day of the forecast strip
type DailyForecastEntry struct {
	Date                 string `json:"date"`     // "2006-01-02"
	DayLabel             string `json:"dayLabel"` // short weekday name
	TemperatureC         int    `json:"temperatureC"`
	ConditionCode        string `json:"conditionCode"`
	ConditionDescription string `json:"conditionDescription"`
	IconURL              string `json:"iconUrl,omitempty"`
}
