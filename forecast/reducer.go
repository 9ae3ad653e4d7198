// Package forecast reduces the provider's 3-hour forecast series to a
// one-entry-per-day strip.
package forecast

import (
	"math"
	"strings"
	"time"

	"weather-insight/icons"
	"weather-insight/models"
)

const (
	// MiddayMarker is the time-of-day component of the sample used as a day's representative.
	MiddayMarker = "12:00:00"

	// MaxDays is the length of the forecast strip.
	MaxDays = 5

	dateLayout = "2006-01-02"
)

// Reduce keeps the midday sample of each day, in input order, and maps the
// first MaxDays of them to DailyForecastEntry values. Days without a midday
// sample are absent from the result. The result is never nil.
func Reduce(samples []models.ForecastSample) []models.DailyForecastEntry {
	entries := make([]models.DailyForecastEntry, 0, MaxDays)
	for _, s := range samples {
		if len(entries) == MaxDays {
			break
		}
		date, clock, ok := strings.Cut(s.TimestampText, " ")
		if !ok || clock != MiddayMarker {
			continue
		}
		day, err := time.Parse(dateLayout, date)
		if err != nil {
			continue
		}
		entries = append(entries, models.DailyForecastEntry{
			Date:                 date,
			DayLabel:             DayLabel(day),
			TemperatureC:         RoundTemp(s.TemperatureC),
			ConditionCode:        s.ConditionCode,
			ConditionDescription: s.ConditionDescription,
			IconURL:              icons.URL(s.ConditionCode, icons.ScaleForecast),
		})
	}
	return entries
}

// DayLabel returns the short English weekday name for t, e.g. "Mon".
func DayLabel(t time.Time) string {
	return t.Weekday().String()[:3]
}

// RoundTemp rounds half-up, so -2.5 becomes -2 and 2.5 becomes 3.
func RoundTemp(c float64) int {
	return int(math.Floor(c + 0.5))
}
