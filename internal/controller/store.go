package controller

import (
	"errors"
	"sync"
	"time"

	"greenhouse_control/internal/models"
)

// ErrNoReading is returned when an operation needs a published reading and none exists yet.
var ErrNoReading = errors.New("no reading has been evaluated yet")

// Snapshot is one published reading/command pair.
type Snapshot struct {
	Valid       bool                   `json:"valid"`
	Seq         uint64                 `json:"seq"`
	PublishedAt time.Time              `json:"published_at"`
	Reading     models.Reading         `json:"reading"`
	Command     models.ActuatorCommand `json:"command"`
	Source      models.CommandSource   `json:"source"`
}

// StateStore is the single source of truth for the latest reading and the
// current actuator command. Pairs are written and read together under one
// short lock, so a reader never sees a command from a different publish.
type StateStore struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewStateStore builds an empty store. A nil clock means time.Now.
func NewStateStore(now func() time.Time) *StateStore {
	if now == nil {
		now = time.Now
	}
	return &StateStore{now: now}
}

// Publish replaces the pair. Concurrent publishers are serialized; the last one wins.
func (s *StateStore) Publish(r models.Reading, c models.ActuatorCommand) Snapshot {
	ts := s.now().UTC()
	s.mu.Lock()
	s.snap = Snapshot{
		Valid:       true,
		Seq:         s.snap.Seq + 1,
		PublishedAt: ts,
		Reading:     r,
		Command:     c,
		Source:      models.SourcePolicy,
	}
	out := s.snap
	s.mu.Unlock()
	return out
}

// Snapshot returns a copy of the current pair.
func (s *StateStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Override forces one channel of the current command. The override stays in
// effect until the next Publish recomputes the command.
func (s *StateStore) Override(ch models.Channel, on bool) (Snapshot, error) {
	ts := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.Valid {
		return Snapshot{}, ErrNoReading
	}
	cmd, err := s.snap.Command.With(ch, on)
	if err != nil {
		return Snapshot{}, err
	}
	s.snap.Seq++
	s.snap.PublishedAt = ts
	s.snap.Command = cmd
	s.snap.Source = models.SourceOverride
	return s.snap, nil
}
