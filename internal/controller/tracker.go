package controller

import (
	"sync"

	"greenhouse_control/internal/models"
)

// AlertTracker holds the latest complete flag set and the baseline captured at
// the previous transition check. The reading path and the link-health path
// each replace only their own subset of flags.
type AlertTracker struct {
	mu       sync.Mutex
	current  models.AlertFlags
	baseline models.AlertFlags
}

// NewAlertTracker starts with both links down, matching the initial LinkMonitor state.
func NewAlertTracker() *AlertTracker {
	initial := models.AlertFlags{SensorLinkDown: true, ActuatorLinkDown: true}
	return &AlertTracker{current: initial}
}

// ObserveSensor replaces the reading-derived flags.
func (t *AlertTracker) ObserveSensor(f models.AlertFlags) {
	t.mu.Lock()
	t.current = t.current.WithSensor(f)
	t.mu.Unlock()
}

// ObserveLinks replaces the connectivity flags.
func (t *AlertTracker) ObserveLinks(f models.AlertFlags) {
	t.mu.Lock()
	t.current = t.current.WithLinks(f)
	t.mu.Unlock()
}

// Current returns a copy of the latest flag set.
func (t *AlertTracker) Current() models.AlertFlags {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Transition compares the current flags with the baseline, advances the
// baseline and returns the flags it compared. Every call moves the baseline,
// so calling it twice per cycle hides the transition from the second caller.
func (t *AlertTracker) Transition() (models.AlertFlags, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.current != t.baseline
	t.baseline = t.current
	return t.current, changed
}

// HasChanged reports whether any flag differs from the previous call.
func (t *AlertTracker) HasChanged() bool {
	_, changed := t.Transition()
	return changed
}

// AnySensorAlertActive reports whether any environmental flag is raised.
func (t *AlertTracker) AnySensorAlertActive() bool {
	return t.Current().SensorAlert()
}

// HasCriticalFailure reports a link down or low supply voltage.
func (t *AlertTracker) HasCriticalFailure() bool {
	return t.Current().CriticalFailure()
}

// State classifies the current flags.
func (t *AlertTracker) State() models.SystemState {
	return models.Classify(t.Current())
}
