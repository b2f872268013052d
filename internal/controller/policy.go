package controller

import "greenhouse_control/internal/models"

// Evaluate maps a reading and the current thresholds to an actuator command
// and the reading-derived alert flags. Every rule is independent and uses a
// strict comparison; there is no hysteresis, so each call recomputes from scratch.
// Link and signal flags are owned by LinkMonitor and are always false here.
func Evaluate(r models.Reading, t models.Thresholds) (models.ActuatorCommand, models.AlertFlags) {
	var (
		cmd   models.ActuatorCommand
		flags models.AlertFlags
	)

	if r.SoilPct < t.SoilLowPct {
		cmd.WaterPump = true
		flags.SoilLow = true
	}
	if r.SoilPct > t.SoilHighPct {
		flags.SoilHigh = true
	}

	if r.TemperatureC < t.TempLowC {
		flags.TempLow = true
	}
	if r.TemperatureC > t.TempHighC {
		cmd.Fan = true
		flags.TempHigh = true
	}

	if r.CO2PPM > t.CO2HighPPM {
		cmd.Fan = true
		flags.CO2High = true
	}

	if float64(r.Light) < t.LightLow {
		cmd.LEDs = true
		flags.LightLow = true
	}

	if r.VoltageV < t.VoltageLowV {
		flags.VoltageLow = true
	}

	return cmd, flags
}
