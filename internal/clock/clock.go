// Package clock keeps the coordinator's wall clock sane. The RTC is a
// software clock that can drift or be set to garbage; the Guard checks it
// against a plausible year range and resyncs it from the reference source.
//
// The coordinator never calls RTC.Set, so its offset stays zero and the RTC
// follows the host clock. Check therefore only fires when the host clock
// itself reports an impossible year, such as a board that booted without
// network time.
package clock

import (
	"context"
	"sync"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"

	"github.com/google/uuid"
)

// RTC is a settable clock expressed as an offset from a reference source.
type RTC struct {
	mu        sync.RWMutex
	offset    time.Duration
	reference func() time.Time
}

// NewRTC returns a clock in sync with reference. A nil reference means time.Now.
func NewRTC(reference func() time.Time) *RTC {
	if reference == nil {
		reference = time.Now
	}
	return &RTC{reference: reference}
}

// Now returns the RTC time.
func (r *RTC) Now() time.Time {
	r.mu.RLock()
	off := r.offset
	r.mu.RUnlock()
	return r.reference().Add(off)
}

// Set moves the RTC to t.
func (r *RTC) Set(t time.Time) {
	r.mu.Lock()
	r.offset = t.Sub(r.reference())
	r.mu.Unlock()
}

// Sync discards any offset and returns the drift that was removed.
func (r *RTC) Sync() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	drift := r.offset
	r.offset = 0
	return drift
}

// EventAppender records clock events.
type EventAppender interface {
	Append(ctx context.Context, e models.Event) error
}

// GuardConfig bounds what counts as a valid date.
type GuardConfig struct {
	MinYear int
	MaxYear int
}

// Guard validates and resyncs an RTC.
type Guard struct {
	rtc    *RTC
	cfg    GuardConfig
	events EventAppender
	log    *logger.Logger
}

// NewGuard builds a guard. events and log may be nil.
func NewGuard(rtc *RTC, cfg GuardConfig, events EventAppender, log *logger.Logger) *Guard {
	if cfg.MinYear == 0 {
		cfg.MinYear = 2020
	}
	if cfg.MaxYear == 0 {
		cfg.MaxYear = 2100
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Guard{rtc: rtc, cfg: cfg, events: events, log: log}
}

// Valid reports whether t falls inside the configured year range.
func (g *Guard) Valid(t time.Time) bool {
	y := t.Year()
	return y >= g.cfg.MinYear && y <= g.cfg.MaxYear
}

// Check validates the RTC and resyncs it when the date is impossible.
// Returns true when a resync happened.
func (g *Guard) Check(ctx context.Context) bool {
	now := g.rtc.Now()
	if g.Valid(now) {
		return false
	}
	g.log.Warnw("clock_invalid", "rtc", now.Format(time.RFC3339), "min_year", g.cfg.MinYear, "max_year", g.cfg.MaxYear)
	g.Resync(ctx, "invalid date")
	return true
}

// Resync pulls the RTC back to the reference time and records a
// CLOCK_RESYNC event.
func (g *Guard) Resync(ctx context.Context, reason string) {
	drift := g.sync(reason)
	if g.events == nil {
		return
	}
	err := g.events.Append(ctx, models.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  g.rtc.Now().UTC(),
		Type:        models.EventClockResync,
		Description: "Clock resynced: " + reason,
		Metadata:    map[string]any{"drift_seconds": drift.Seconds()},
	})
	if err != nil {
		g.log.Warnw("clock_event_failed", "error", err)
	}
}

// sync resyncs without recording an event.
func (g *Guard) sync(reason string) time.Duration {
	drift := g.rtc.Sync()
	g.log.Infow("clock_resync", "reason", reason, "drift", drift.String())
	return drift
}

// Run checks every checkEvery and resyncs every resyncEvery until ctx is
// canceled. Only resyncs caused by an invalid date are recorded as events.
func (g *Guard) Run(ctx context.Context, checkEvery, resyncEvery time.Duration) {
	if checkEvery <= 0 {
		checkEvery = time.Minute
	}
	if resyncEvery <= 0 {
		resyncEvery = 30 * time.Minute
	}
	check := time.NewTicker(checkEvery)
	defer check.Stop()
	resync := time.NewTicker(resyncEvery)
	defer resync.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-check.C:
			g.Check(ctx)
		case <-resync.C:
			g.sync("scheduled")
		}
	}
}
