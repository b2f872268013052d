package service

import (
	"time"

	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/models"
)

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "ALERT", "THRESHOLD_UPDATE", "OVERRIDE", "CLOCK_RESYNC", "STARTUP"
}

// ReadingFilter selects a window of the telemetry log.
type ReadingFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Status is a consistent view of the coordinator at one moment.
type Status struct {
	HasReading bool                   `json:"has_reading"`
	Reading    *models.Reading        `json:"reading,omitempty"`
	Command    models.ActuatorCommand `json:"command"`
	Source     models.CommandSource   `json:"command_source,omitempty"`
	Seq        uint64                 `json:"seq"`
	UpdatedAt  time.Time              `json:"updated_at,omitempty"`
	Flags      models.AlertFlags      `json:"flags"`
	Active     []string               `json:"active"`
	State      models.SystemState     `json:"system_state"`
	Links      controller.LinkStatus  `json:"links"`
	Thresholds models.Thresholds      `json:"thresholds"`
}

// Reply is the answer to a free-text operator command.
type Reply struct {
	Kind string `json:"kind"`
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}
