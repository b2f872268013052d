package service

import (
	"context"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"
)

// RecorderService appends (timestamp, reading, system state) to the
// telemetry log on a fixed cadence.
type RecorderService struct {
	core     Core
	readings repository.ReadingRepo
	log      *logger.Logger
}

func NewRecorderService(core Core, readings repository.ReadingRepo) *RecorderService {
	if core.Now == nil {
		core.Now = time.Now
	}
	return &RecorderService{core: core, readings: readings, log: core.logger()}
}

// Run ticks at the given interval until ctx is canceled.
func (s *RecorderService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RecordOnce(ctx); err != nil {
				s.log.Warnw("telemetry_persist_failed", "err", err)
			}
		}
	}
}

// RecordOnce writes one row. It is skipped until the first reading arrives.
func (s *RecorderService) RecordOnce(ctx context.Context) (bool, error) {
	snap := s.core.Store.Snapshot()
	if !snap.Valid {
		return false, nil
	}
	links := s.core.Links.Status()
	rec := models.TelemetryRecord{
		RecordedAt: s.core.Now().UTC(),
		NodeID:     links.NodeID,
		RSSI:       links.RSSI,
		Reading:    snap.Reading,
		State:      models.Classify(s.core.Tracker.Current()),
	}
	err := s.readings.Append(ctx, rec)
	s.core.Metrics.Persisted(err == nil)
	if err != nil {
		return false, err
	}
	return true, nil
}
