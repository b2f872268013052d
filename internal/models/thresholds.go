package models

// Thresholds holds the bounds the policy compares readings against.
type Thresholds struct {
	SoilLowPct   float64 `json:"soil_low_pct" mapstructure:"soil_low"`
	SoilHighPct  float64 `json:"soil_high_pct" mapstructure:"soil_high"`
	TempLowC     float64 `json:"temp_low_c" mapstructure:"temp_low"`
	TempHighC    float64 `json:"temp_high_c" mapstructure:"temp_high"`
	CO2HighPPM   float64 `json:"co2_high_ppm" mapstructure:"co2_high"`
	LightLow     float64 `json:"light_low" mapstructure:"light_low"`
	VoltageLowV  float64 `json:"voltage_low_v" mapstructure:"voltage_low"`
	SignalLowDBm float64 `json:"signal_low_dbm" mapstructure:"signal_low"`
}

// DefaultThresholds mirrors the values the greenhouse firmware shipped with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SoilLowPct:   30,
		SoilHighPct:  85,
		TempLowC:     12,
		TempHighC:    28,
		CO2HighPPM:   800,
		LightLow:     300,
		VoltageLowV:  5.5,
		SignalLowDBm: -80,
	}
}
