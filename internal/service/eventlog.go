package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"

	"github.com/google/uuid"
)

type EventLogService struct {
	eventRepo repository.EventRepo
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo, now func() time.Time) *EventLogService {
	if now == nil {
		now = time.Now
	}
	return &EventLogService{eventRepo: eventRepo, now: now}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errUnknownEventType = errors.New("unknown event type")
)

var knownEventTypes = map[string]bool{
	models.EventAlert:           true,
	models.EventThresholdUpdate: true,
	models.EventOverride:        true,
	models.EventClockResync:     true,
	models.EventStartup:         true,
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range and type.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	if eventType != "" && !knownEventTypes[eventType] {
		return time.Time{}, time.Time{}, "", fmt.Errorf("%w: %s", errUnknownEventType, eventType)
	}
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

// Record appends an event stamped with the coordinator clock.
func (s *EventLogService) Record(ctx context.Context, typ, description string, meta any) error {
	typ = normalizeEventType(typ)
	if !knownEventTypes[typ] {
		return fmt.Errorf("%w: %s", errUnknownEventType, typ)
	}
	return s.eventRepo.Append(ctx, models.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  s.now().UTC(),
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
}

// Append lets the service stand in for a repository.EventRepo where only
// appends are needed (alert and clock event sinks).
func (s *EventLogService) Append(ctx context.Context, e models.Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}
	return s.eventRepo.Append(ctx, e)
}
