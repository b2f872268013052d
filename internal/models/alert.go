package models

import (
	"fmt"
	"time"
)

// AlertFlags is the set of monitored conditions currently out of bounds.
type AlertFlags struct {
	SoilLow          bool `json:"soil_low"`
	SoilHigh         bool `json:"soil_high"`
	TempLow          bool `json:"temp_low"`
	TempHigh         bool `json:"temp_high"`
	CO2High          bool `json:"co2_high"`
	LightLow         bool `json:"light_low"`
	VoltageLow       bool `json:"voltage_low"`
	SignalWeak       bool `json:"signal_weak"`
	SensorLinkDown   bool `json:"sensor_link_down"`
	ActuatorLinkDown bool `json:"actuator_link_down"`
}

// WithSensor returns f with the reading-derived fields taken from src.
func (f AlertFlags) WithSensor(src AlertFlags) AlertFlags {
	f.SoilLow = src.SoilLow
	f.SoilHigh = src.SoilHigh
	f.TempLow = src.TempLow
	f.TempHigh = src.TempHigh
	f.CO2High = src.CO2High
	f.LightLow = src.LightLow
	f.VoltageLow = src.VoltageLow
	return f
}

// WithLinks returns f with the connectivity fields taken from src.
func (f AlertFlags) WithLinks(src AlertFlags) AlertFlags {
	f.SignalWeak = src.SignalWeak
	f.SensorLinkDown = src.SensorLinkDown
	f.ActuatorLinkDown = src.ActuatorLinkDown
	return f
}

// SensorAlert reports whether any environmental condition is out of bounds.
// Voltage is excluded: it is classified as a critical failure.
func (f AlertFlags) SensorAlert() bool {
	return f.SoilLow || f.SoilHigh || f.TempLow || f.TempHigh || f.CO2High || f.LightLow
}

// CriticalFailure reports conditions that need immediate operator attention.
func (f AlertFlags) CriticalFailure() bool {
	return f.SensorLinkDown || f.ActuatorLinkDown || f.VoltageLow
}

// ConnectivityFailure reports whether any link is down or degraded.
func (f AlertFlags) ConnectivityFailure() bool {
	return f.SensorLinkDown || f.ActuatorLinkDown || f.SignalWeak
}

// Active lists the names of all raised flags in a stable order.
func (f AlertFlags) Active() []string {
	var out []string
	for _, p := range []struct {
		on   bool
		name string
	}{
		{f.SoilLow, "SOIL_LOW"},
		{f.SoilHigh, "SOIL_HIGH"},
		{f.TempLow, "TEMP_LOW"},
		{f.TempHigh, "TEMP_HIGH"},
		{f.CO2High, "CO2_HIGH"},
		{f.LightLow, "LIGHT_LOW"},
		{f.VoltageLow, "VOLTAGE_LOW"},
		{f.SignalWeak, "SIGNAL_WEAK"},
		{f.SensorLinkDown, "SENSOR_LINK_DOWN"},
		{f.ActuatorLinkDown, "ACTUATOR_LINK_DOWN"},
	} {
		if p.on {
			out = append(out, p.name)
		}
	}
	return out
}

// SystemState is the coarse classification written to the telemetry log.
type SystemState int

const (
	StateNormal SystemState = iota
	StateConnectivityFailure
	StateSensorAlert
	StateCriticalFailure
)

func (s SystemState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateConnectivityFailure:
		return "CONNECTIVITY_FAILURE"
	case StateSensorAlert:
		return "SENSOR_ALERT"
	case StateCriticalFailure:
		return "CRITICAL_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets SystemState travel as its name in JSON.
func (s SystemState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (s *SystemState) UnmarshalText(b []byte) error {
	v, ok := ParseSystemState(string(b))
	if !ok {
		return fmt.Errorf("unknown system state %q", string(b))
	}
	*s = v
	return nil
}

// ParseSystemState maps a state name back to its value.
func ParseSystemState(name string) (SystemState, bool) {
	for _, s := range []SystemState{StateNormal, StateConnectivityFailure, StateSensorAlert, StateCriticalFailure} {
		if s.String() == name {
			return s, true
		}
	}
	return StateNormal, false
}

// Classify maps flags to a SystemState. Categories are checked in priority
// order: connectivity, sensor alert, critical failure.
func Classify(f AlertFlags) SystemState {
	switch {
	case f.ConnectivityFailure():
		return StateConnectivityFailure
	case f.SensorAlert():
		return StateSensorAlert
	case f.CriticalFailure():
		return StateCriticalFailure
	default:
		return StateNormal
	}
}

// Alert is a notification emitted when the flag set changes.
type Alert struct {
	ID         string      `json:"id"`
	OccurredAt time.Time   `json:"occurred_at"`
	State      SystemState `json:"system_state"`
	Flags      AlertFlags  `json:"flags"`
	Active     []string    `json:"active"`
	Reading    *Reading    `json:"reading,omitempty"`
}
