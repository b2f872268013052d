package models

import "time"

// Reading is one complete environmental sample from the sensor node.
type Reading struct {
	TemperatureC float64 `json:"temperature_c"` // °C
	HumidityPct  float64 `json:"humidity_pct"`  // %
	Light        uint16  `json:"light"`         // raw LDR count
	CO2PPM       float64 `json:"co2_ppm"`
	SoilPct      float64 `json:"soil_pct"` // %
	VoltageV     float64 `json:"voltage_v"`
}

// ReadingEnvelope is what the sensor node puts on the wire.
type ReadingEnvelope struct {
	NodeID  string    `json:"node_id"`
	Seq     uint64    `json:"seq"`
	SentAt  time.Time `json:"sent_at"`
	RSSI    *int      `json:"rssi,omitempty"` // dBm, when the radio reports it
	Reading Reading   `json:"reading"`
}

// TelemetryRecord is one row of the periodic telemetry log.
type TelemetryRecord struct {
	ID         int64       `json:"id,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
	NodeID     string      `json:"node_id"`
	RSSI       int         `json:"rssi"`
	Reading    Reading     `json:"reading"`
	State      SystemState `json:"system_state"`
}
