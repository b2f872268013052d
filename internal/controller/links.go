package controller

import (
	"sync"
	"time"

	"greenhouse_control/internal/models"
)

// DefaultSensorTimeout is how long the sensor link may stay silent before it is considered down.
const DefaultSensorTimeout = 10 * time.Second

// LinkState is the liveness of one node link.
type LinkState struct {
	Connected    bool      `json:"connected"`
	LastActivity time.Time `json:"last_activity,omitempty"`
}

// LinkStatus is a copy of both links plus the last signal reading.
type LinkStatus struct {
	Sensor    LinkState `json:"sensor"`
	Actuator  LinkState `json:"actuator"`
	RSSI      int       `json:"rssi"`
	RSSIKnown bool      `json:"rssi_known"`
	NodeID    string    `json:"node_id,omitempty"`
}

// LinkMonitor tracks the upstream sensor link (timeout based) and the
// downstream actuator link (last send outcome). Both start disconnected.
// The sensor timeout is only evaluated when CheckSensor is called.
type LinkMonitor struct {
	mu            sync.Mutex
	now           func() time.Time
	sensorTimeout time.Duration
	sensor        LinkState
	actuator      LinkState
	rssi          int
	rssiKnown     bool
	nodeID        string
}

// NewLinkMonitor builds a monitor. A nil clock means time.Now.
func NewLinkMonitor(sensorTimeout time.Duration, now func() time.Time) *LinkMonitor {
	if sensorTimeout <= 0 {
		sensorTimeout = DefaultSensorTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &LinkMonitor{now: now, sensorTimeout: sensorTimeout}
}

// SensorActivity records a reading received from nodeID. Returns true if the link was down.
func (m *LinkMonitor) SensorActivity(nodeID string) bool {
	ts := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	wasDown := !m.sensor.Connected
	m.sensor = LinkState{Connected: true, LastActivity: ts}
	if nodeID != "" {
		m.nodeID = nodeID
	}
	return wasDown
}

// CheckSensor applies the inactivity timeout and returns the sensor link state.
func (m *LinkMonitor) CheckSensor() LinkState {
	ts := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sensor.Connected && ts.Sub(m.sensor.LastActivity) > m.sensorTimeout {
		m.sensor.Connected = false
	}
	return m.sensor
}

// ActuatorResult records the outcome of the most recent command send.
// Returns true if connectivity changed.
func (m *LinkMonitor) ActuatorResult(ok bool) bool {
	ts := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.actuator.Connected != ok
	m.actuator.Connected = ok
	if ok {
		m.actuator.LastActivity = ts
	}
	return changed
}

// ObserveSignal stores the latest link signal strength in dBm.
func (m *LinkMonitor) ObserveSignal(rssi int) {
	m.mu.Lock()
	m.rssi = rssi
	m.rssiKnown = true
	m.mu.Unlock()
}

// Status returns a copy of both links without applying the timeout.
func (m *LinkMonitor) Status() LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return LinkStatus{Sensor: m.sensor, Actuator: m.actuator, RSSI: m.rssi, RSSIKnown: m.rssiKnown, NodeID: m.nodeID}
}

// Flags returns the connectivity flags. An unknown signal is never weak.
func (m *LinkMonitor) Flags(signalLowDBm float64) models.AlertFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.AlertFlags{
		SignalWeak:       m.rssiKnown && float64(m.rssi) < signalLowDBm,
		SensorLinkDown:   !m.sensor.Connected,
		ActuatorLinkDown: !m.actuator.Connected,
	}
}
