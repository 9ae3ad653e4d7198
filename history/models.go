package history

import (
	"time"

	"github.com/google/uuid"
)

// QueryRecord is one completed query cycle
type QueryRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QueryID      string    `gorm:"index" json:"queryId"`
	Query        string    `json:"query"`
	Phase        string    `json:"phase"`
	Kind         string    `json:"kind,omitempty"`
	City         string    `json:"city,omitempty"`
	Country      string    `json:"country,omitempty"`
	TemperatureC *float64  `json:"temperatureC,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ForecastDays int       `json:"forecastDays"`
	CompletedAt  time.Time `gorm:"index" json:"completedAt"`
}
