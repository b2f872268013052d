package service

import (
	"context"
	"time"

	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/metrics"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Monitoring exposes read-only views of the coordinator: the live status
// and the persisted telemetry history.
type Monitoring interface {
	Status(ctx context.Context) (Status, error)
	Readings(ctx context.Context, f ReadingFilter) ([]models.TelemetryRecord, error)
}

// Control exposes the operator actions: thresholds, overrides and the
// free-text command channel.
type Control interface {
	Thresholds() models.Thresholds
	UpdateThresholds(ctx context.Context, updates map[string]float64) (models.Thresholds, error)
	Override(ctx context.Context, ch models.Channel, on bool) (controller.Snapshot, error)
	Execute(ctx context.Context, text string) Reply
}

// EventLog exposes the append-only event log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
	Record(ctx context.Context, typ, description string, meta any) error
}

// Recorder writes the periodic telemetry log.
// Stop via context cancellation in main() for graceful shutdown.
type Recorder interface {
	Run(ctx context.Context, tick time.Duration)
}

// Overrider forces one actuator channel and transmits the result.
type Overrider interface {
	Override(ctx context.Context, ch models.Channel, on bool) (controller.Snapshot, error)
}

// Core holds the live controller structures shared with the dispatcher.
type Core struct {
	Thresholds *controller.ThresholdStore
	Store      *controller.StateStore
	Tracker    *controller.AlertTracker
	Links      *controller.LinkMonitor
	Overrider  Overrider
	Now        func() time.Time
	Metrics    *metrics.Metrics
	// Log receives background write failures. Nil discards them.
	Log *logger.Logger
}

func (c Core) logger() *logger.Logger {
	if c.Log == nil {
		return logger.Nop()
	}
	return c.Log
}

type Service struct {
	Monitoring
	Control
	EventLog
	Recorder
	Authorization
}

// NewService wires the repositories and the live controller state into the
// concrete services.
func NewService(repos *repository.Repository, core Core, auth AuthOptions) *Service {
	if core.Now == nil {
		core.Now = time.Now
	}
	events := NewEventLogService(repos.Events, core.Now)
	return &Service{
		Monitoring:    NewMonitoringService(core, repos.Readings),
		Control:       NewControlService(core, events),
		EventLog:      events,
		Recorder:      NewRecorderService(core, repos.Readings),
		Authorization: NewAuthService(repos.Auth, auth),
	}
}
