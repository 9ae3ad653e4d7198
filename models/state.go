package models

import (
	"time"
)

// Phase is the lifecycle position of the current query cycle
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// Terminal reports whether a query cycle in this phase has finished.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseFailed
}

// FailureKind classifies why a cycle failed
type FailureKind string

const (
	FailureNotFound  FailureKind = "not_found"
	FailureTransport FailureKind = "transport"
	FailureInternal  FailureKind = "internal"
)

// RequestState is the active phase plus, for failed cycles, the user-visible reason
type RequestState struct {
	Phase  Phase       `json:"phase"`
	Reason string      `json:"reason,omitempty"`
	Kind   FailureKind `json:"kind,omitempty"`
}

// Snapshot is a read-only copy of the lookup state handed to presentation surfaces
type Snapshot struct {
	QueryID   string               `json:"queryId,omitempty"`
	Query     string               `json:"query,omitempty"` // text of the most recent query
	City      string               `json:"city,omitempty"`  // last successfully searched city
	State     RequestState         `json:"state"`
	Current   *CurrentConditions   `json:"current,omitempty"`
	Forecast  []DailyForecastEntry `json:"forecast"`
	UpdatedAt time.Time            `json:"updatedAt"`
}
