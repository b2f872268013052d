package actuatornode

import (
	"sync"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
)

// Output drives one physical channel: a relay for the pump and the fan, a
// bank of LEDs for the grow lights.
type Output interface {
	Set(ch models.Channel, on bool) error
}

// LogOutput is an Output for hosts without GPIO. It records the state of
// every channel and logs each change.
type LogOutput struct {
	log  *logger.Logger
	leds int

	mu    sync.Mutex
	state map[models.Channel]bool
}

// NewLogOutput models leds grow-light LEDs driven together.
func NewLogOutput(log *logger.Logger, leds int) *LogOutput {
	if log == nil {
		log = logger.Nop()
	}
	if leds <= 0 {
		leds = 4
	}
	return &LogOutput{log: log, leds: leds, state: map[models.Channel]bool{}}
}

func (o *LogOutput) Set(ch models.Channel, on bool) error {
	if _, err := (models.ActuatorCommand{}).With(ch, on); err != nil {
		return err
	}
	o.mu.Lock()
	prev, known := o.state[ch]
	o.state[ch] = on
	o.mu.Unlock()

	if known && prev == on {
		return nil
	}
	if ch == models.ChannelLEDs {
		o.log.Infow("output_set", "channel", ch, "on", on, "leds", o.leds)
		return nil
	}
	o.log.Infow("output_set", "channel", ch, "on", on)
	return nil
}

// State reports the last value set on ch.
func (o *LogOutput) State(ch models.Channel) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state[ch]
}
