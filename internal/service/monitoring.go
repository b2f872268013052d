package service

import (
	"context"
	"time"

	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"
)

type MonitoringService struct {
	core     Core
	readings repository.ReadingRepo
}

func NewMonitoringService(core Core, readings repository.ReadingRepo) *MonitoringService {
	return &MonitoringService{core: core, readings: readings}
}

// Status assembles the live view. The reading/command pair comes from one
// snapshot, so it is always consistent even if the flags have moved on.
func (s *MonitoringService) Status(_ context.Context) (Status, error) {
	snap := s.core.Store.Snapshot()
	flags := s.core.Tracker.Current()

	st := Status{
		HasReading: snap.Valid,
		Command:    snap.Command,
		Source:     snap.Source,
		Seq:        snap.Seq,
		UpdatedAt:  toUTC(snap.PublishedAt),
		Flags:      flags,
		Active:     flags.Active(),
		State:      models.Classify(flags),
		Links:      s.core.Links.Status(),
		Thresholds: s.core.Thresholds.Get(),
	}
	if snap.Valid {
		r := snap.Reading
		st.Reading = &r
	}
	if st.Active == nil {
		st.Active = []string{}
	}
	return st, nil
}

// Readings returns the persisted telemetry in the requested window.
func (s *MonitoringService) Readings(ctx context.Context, f ReadingFilter) ([]models.TelemetryRecord, error) {
	from, to := toUTC(f.From), toUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	return s.readings.List(ctx, from, to, f.Limit)
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
