package models

import "time"

// Event types stored in the coordinator's event log.
const (
	EventAlert           = "ALERT"
	EventThresholdUpdate = "THRESHOLD_UPDATE"
	EventOverride        = "OVERRIDE"
	EventClockResync     = "CLOCK_RESYNC"
	EventStartup         = "STARTUP"
)

// Event is a single log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // ALERT | THRESHOLD_UPDATE | OVERRIDE | CLOCK_RESYNC | STARTUP
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
