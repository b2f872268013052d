package models

import (
	"fmt"
	"time"
)

// ActuatorCommand is the desired on/off state of every output channel.
type ActuatorCommand struct {
	WaterPump bool `json:"water_pump"`
	Fan       bool `json:"fan"`
	LEDs      bool `json:"leds"`
}

// Channel names one actuator output.
type Channel string

const (
	ChannelPump Channel = "pump"
	ChannelFan  Channel = "fan"
	ChannelLEDs Channel = "leds"
)

// With returns a copy of c with one channel forced to on.
func (c ActuatorCommand) With(ch Channel, on bool) (ActuatorCommand, error) {
	switch ch {
	case ChannelPump:
		c.WaterPump = on
	case ChannelFan:
		c.Fan = on
	case ChannelLEDs:
		c.LEDs = on
	default:
		return c, fmt.Errorf("unknown actuator channel %q", ch)
	}
	return c, nil
}

// CommandSource tells whether the current command came from the threshold policy or an operator.
type CommandSource string

const (
	SourcePolicy   CommandSource = "POLICY"
	SourceOverride CommandSource = "OVERRIDE"
)

// CommandEnvelope is what the coordinator puts on the wire for the actuator node.
type CommandEnvelope struct {
	Seq     uint64          `json:"seq"`
	Source  CommandSource   `json:"source"`
	Command ActuatorCommand `json:"command"`
}

// ActuatorReport is what the actuator node publishes after applying a
// command. Its Seq echoes the command it answers.
type ActuatorReport struct {
	NodeID    string          `json:"node_id"`
	Seq       uint64          `json:"seq"`
	Source    CommandSource   `json:"source"`
	Applied   ActuatorCommand `json:"applied"`
	AppliedAt time.Time       `json:"applied_at"`
	Errors    []string        `json:"errors,omitempty"`
}
