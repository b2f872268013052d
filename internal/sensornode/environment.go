package sensornode

import (
	"math"
	"sync"
	"time"

	"greenhouse_control/internal/models"
)

// ----------- Simulation constants -----------
const (
	DefaultAmbientC = 24.0 // outside air temperature °C
	OutdoorCO2PPM   = 420.0
	MaxLightCount   = 4095

	// rates per second of simulated time
	SoilDryPctPerSec = 0.05
	SoilWetPctPerSec = 1.5
	TempFollowPerSec = 0.01 // fraction of the gap to ambient
	SunHeatCPerSec   = 0.02
	FanCoolCPerSec   = 0.15
	CO2RisePPMPerSec = 2.0
	CO2VentPPMPerSec = 12.0
	FanDryPctPerSec  = 0.3

	HumidityPerSoil = 0.4    // % RH gained per % soil wetted
	DaylightPeak    = 3600.0 // LDR count at noon
	LEDLight        = 900.0  // LDR count added by the grow lights
	NominalVoltageV = 6.4
	PumpVoltageSagV = 0.6
)

// Environment is a simulated greenhouse. Actuator state comes from the
// commands the node observes on the command topic.
type Environment struct {
	mu       sync.Mutex
	ambientC float64
	state    models.Reading
	cmd      models.ActuatorCommand
	last     time.Time
}

// NewEnvironment starts a greenhouse in a plausible resting state.
func NewEnvironment(ambientC float64, start time.Time) *Environment {
	if ambientC == 0 {
		ambientC = DefaultAmbientC
	}
	return &Environment{
		ambientC: ambientC,
		last:     start,
		state: models.Reading{
			TemperatureC: ambientC,
			HumidityPct:  55,
			Light:        daylight(start),
			CO2PPM:       OutdoorCO2PPM,
			SoilPct:      50,
			VoltageV:     NominalVoltageV,
		},
	}
}

// SetCommand records the actuator state that drives the next steps.
func (e *Environment) SetCommand(c models.ActuatorCommand) {
	e.mu.Lock()
	e.cmd = c
	e.mu.Unlock()
}

// Command returns the actuator state the environment currently assumes.
func (e *Environment) Command() models.ActuatorCommand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd
}

// Sample advances the simulation to now and returns the resulting reading.
// Calls with a non-increasing now return the current reading unchanged.
func (e *Environment) Sample(now time.Time) models.Reading {
	e.mu.Lock()
	defer e.mu.Unlock()
	elapsed := now.Sub(e.last).Seconds()
	if elapsed > 0 {
		e.step(elapsed, now)
		e.last = now
	}
	return e.state
}

func (e *Environment) step(elapsed float64, now time.Time) {
	st := &e.state
	sun := sunFactor(now)

	// soil and humidity
	soilBefore := st.SoilPct
	st.SoilPct -= SoilDryPctPerSec * elapsed
	if e.cmd.WaterPump {
		st.SoilPct += SoilWetPctPerSec * elapsed
	}
	st.SoilPct = clamp(st.SoilPct, 0, 100)
	if gained := st.SoilPct - soilBefore; gained > 0 {
		st.HumidityPct += gained * HumidityPerSoil
	}
	if e.cmd.Fan {
		st.HumidityPct -= FanDryPctPerSec * elapsed
	}
	st.HumidityPct = clamp(st.HumidityPct, 5, 100)

	// temperature follows ambient, the sun heats, the fan cools
	st.TemperatureC += (e.ambientC - st.TemperatureC) * math.Min(1, TempFollowPerSec*elapsed)
	st.TemperatureC += SunHeatCPerSec * sun * elapsed
	if e.cmd.Fan {
		st.TemperatureC = math.Max(st.TemperatureC-FanCoolCPerSec*elapsed, e.ambientC-2)
	}

	// CO2 accumulates while closed, the fan vents towards outdoor level
	st.CO2PPM += CO2RisePPMPerSec * (1 - sun) * elapsed
	if e.cmd.Fan {
		st.CO2PPM = math.Max(st.CO2PPM-CO2VentPPMPerSec*elapsed, OutdoorCO2PPM)
	}

	// light is the day cycle plus the grow lights
	light := float64(daylight(now))
	if e.cmd.LEDs {
		light += LEDLight
	}
	st.Light = uint16(clamp(light, 0, MaxLightCount))

	st.VoltageV = NominalVoltageV
	if e.cmd.WaterPump {
		st.VoltageV -= PumpVoltageSagV
	}
}

// sunFactor is 0 at night and peaks at 1 at noon (local time of now).
func sunFactor(now time.Time) float64 {
	h := float64(now.Hour()) + float64(now.Minute())/60
	if h < 6 || h > 18 {
		return 0
	}
	return math.Sin((h - 6) / 12 * math.Pi)
}

func daylight(now time.Time) uint16 {
	return uint16(clamp(DaylightPeak*sunFactor(now), 0, MaxLightCount))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
