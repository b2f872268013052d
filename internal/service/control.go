package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
)

// Command kinds reported in replies and metrics.
const (
	KindData       = "data"
	KindStatus     = "status"
	KindThreshold  = "threshold"
	KindThresholds = "thresholds"
	KindOverride   = "override"
	KindActuators  = "actuators"
	KindHelp       = "help"
	KindUnknown    = "unknown"
)

var errNoOverrider = errors.New("actuator override is not available")

// Operator words for each channel, as the field firmware accepted them plus English.
var channelAliases = map[string]models.Channel{
	"bomba":      models.ChannelPump,
	"pump":       models.ChannelPump,
	"water_pump": models.ChannelPump,
	"ventilador": models.ChannelFan,
	"fan":        models.ChannelFan,
	"luces":      models.ChannelLEDs,
	"leds":       models.ChannelLEDs,
	"lights":     models.ChannelLEDs,
}

// ParseChannel resolves an operator word (Spanish or English) to a channel.
func ParseChannel(word string) (models.Channel, bool) {
	ch, ok := channelAliases[strings.ToLower(strings.TrimSpace(word))]
	return ch, ok
}

const helpText = `Commands:
/datos (/data) - latest reading
/estado (/status) - system state and links
/umbral <field> <value> (/threshold) - change a threshold
/umbrales (/thresholds) - current thresholds
/activar|/desactivar <bomba|ventilador|luces> (/on|/off <pump|fan|leds>) - override until the next reading
/actuadores (/actuators) - actuator states
/guia (/help) - this guide
Threshold fields: suelo_min, suelo_max, temp_min, temp_max, co2, luz, voltaje, senal`

const unknownText = "Unrecognized command. Send /guia for the list of commands."

type ControlService struct {
	core   Core
	events EventLog
	log    *logger.Logger
}

func NewControlService(core Core, events EventLog) *ControlService {
	return &ControlService{core: core, events: events, log: core.logger()}
}

func (s *ControlService) Thresholds() models.Thresholds {
	return s.core.Thresholds.Get()
}

// UpdateThresholds applies all updates or none and records the change.
func (s *ControlService) UpdateThresholds(ctx context.Context, updates map[string]float64) (models.Thresholds, error) {
	th, err := s.core.Thresholds.Apply(updates)
	if err != nil {
		return models.Thresholds{}, err
	}
	s.record(ctx, models.EventThresholdUpdate, fmt.Sprintf("Thresholds updated: %s", formatUpdates(updates)), updates)
	return th, nil
}

// Override forces a channel until the next reading is evaluated.
func (s *ControlService) Override(ctx context.Context, ch models.Channel, on bool) (controller.Snapshot, error) {
	if s.core.Overrider == nil {
		return controller.Snapshot{}, errNoOverrider
	}
	snap, err := s.core.Overrider.Override(ctx, ch, on)
	if err != nil {
		return controller.Snapshot{}, err
	}
	s.record(ctx, models.EventOverride, fmt.Sprintf("%s forced %s", ch, onOff(on)), map[string]any{
		"channel": string(ch),
		"on":      on,
		"seq":     snap.Seq,
	})
	return snap, nil
}

// Execute interprets one free-text operator command. It never fails: bad
// input gets a generic reply and changes nothing.
func (s *ControlService) Execute(ctx context.Context, text string) Reply {
	reply := s.execute(ctx, text)
	s.core.Metrics.Command(reply.Kind)
	return reply
}

func (s *ControlService) execute(ctx context.Context, text string) Reply {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Reply{Kind: KindUnknown, Text: unknownText}
	}
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(verb, '@'); i >= 0 {
		verb = verb[:i]
	}
	args := fields[1:]

	switch verb {
	case "datos", "data":
		return s.dataReply()
	case "estado", "status":
		return s.statusReply()
	case "umbral", "threshold":
		if len(args) != 2 {
			return Reply{Kind: KindThreshold, Text: "Usage: /umbral <field> <value>"}
		}
		return s.setThreshold(ctx, args[0], args[1])
	case "umbrales", "thresholds":
		return Reply{Kind: KindThresholds, OK: true, Text: formatThresholds(s.core.Thresholds.Get())}
	case "activar", "on", "desactivar", "off":
		on := verb == "activar" || verb == "on"
		if len(args) != 1 {
			return Reply{Kind: KindOverride, Text: "Usage: /activar|/desactivar <bomba|ventilador|luces>"}
		}
		return s.overrideReply(ctx, args[0], on)
	case "actuadores", "actuators":
		return s.actuatorsReply()
	case "guia", "help", "start", "ayuda":
		return Reply{Kind: KindHelp, OK: true, Text: helpText}
	}

	// bare "<field> <value>"
	if len(fields) == 2 {
		if _, ok := controller.CanonicalField(fields[0]); ok {
			return s.setThreshold(ctx, fields[0], fields[1])
		}
	}
	return Reply{Kind: KindUnknown, Text: unknownText}
}

func (s *ControlService) setThreshold(ctx context.Context, field, raw string) Reply {
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return Reply{Kind: KindThreshold, Text: "Threshold not changed: value must be a number."}
	}
	canonical, ok := controller.CanonicalField(field)
	if !ok {
		return Reply{Kind: KindThreshold, Text: "Threshold not changed: unknown field. Send /guia for the list."}
	}
	th, err := s.UpdateThresholds(ctx, map[string]float64{canonical: v})
	if err != nil {
		return Reply{Kind: KindThreshold, Text: "Threshold not changed: value rejected."}
	}
	return Reply{Kind: KindThreshold, OK: true, Text: "Threshold updated.\n" + formatThresholds(th)}
}

func (s *ControlService) overrideReply(ctx context.Context, word string, on bool) Reply {
	ch, ok := ParseChannel(word)
	if !ok {
		return Reply{Kind: KindOverride, Text: "Unknown actuator. Use bomba, ventilador or luces."}
	}
	snap, err := s.Override(ctx, ch, on)
	if errors.Is(err, controller.ErrNoReading) {
		return Reply{Kind: KindOverride, Text: "No reading yet; override not applied."}
	}
	if err != nil {
		return Reply{Kind: KindOverride, Text: "Override not applied."}
	}
	return Reply{Kind: KindOverride, OK: true, Text: fmt.Sprintf("%s %s until the next reading.\n%s", ch, onOff(on), formatCommand(snap.Command, snap.Source))}
}

func (s *ControlService) dataReply() Reply {
	snap := s.core.Store.Snapshot()
	if !snap.Valid {
		return Reply{Kind: KindData, Text: "No reading received yet."}
	}
	return Reply{Kind: KindData, OK: true, Text: formatReading(snap.Reading)}
}

func (s *ControlService) statusReply() Reply {
	flags := s.core.Tracker.Current()
	links := s.core.Links.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "System: %s\n", models.Classify(flags))
	if active := flags.Active(); len(active) > 0 {
		fmt.Fprintf(&b, "Active: %s\n", strings.Join(active, ", "))
	} else {
		b.WriteString("Active: none\n")
	}
	fmt.Fprintf(&b, "Sensor link: %s\n", linkText(links.Sensor, s.core.Now()))
	fmt.Fprintf(&b, "Actuator link: %s", linkText(links.Actuator, s.core.Now()))
	if links.RSSIKnown {
		fmt.Fprintf(&b, "\nSignal: %d dBm", links.RSSI)
	}
	return Reply{Kind: KindStatus, OK: true, Text: b.String()}
}

func (s *ControlService) actuatorsReply() Reply {
	snap := s.core.Store.Snapshot()
	if !snap.Valid {
		return Reply{Kind: KindActuators, Text: "No command issued yet."}
	}
	return Reply{Kind: KindActuators, OK: true, Text: formatCommand(snap.Command, snap.Source)}
}

func (s *ControlService) record(ctx context.Context, typ, desc string, meta any) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, typ, desc, meta); err != nil {
		s.log.Warnw("event_record_failed", "type", typ, "err", err)
	}
}

// StartupGreeting is sent on the remote channel when the coordinator comes up.
func StartupGreeting(nodeID string) string {
	return fmt.Sprintf("Greenhouse coordinator %s online. Send /guia for the list of commands.", nodeID)
}

func formatReading(r models.Reading) string {
	return fmt.Sprintf("Temperature: %.1f °C\nHumidity: %.1f %%\nLight: %d\nCO2: %.0f ppm\nSoil moisture: %.1f %%\nVoltage: %.2f V",
		r.TemperatureC, r.HumidityPct, r.Light, r.CO2PPM, r.SoilPct, r.VoltageV)
}

func formatThresholds(t models.Thresholds) string {
	return fmt.Sprintf("Soil: %.1f - %.1f %%\nTemperature: %.1f - %.1f °C\nCO2 max: %.0f ppm\nLight min: %.0f\nVoltage min: %.2f V\nSignal min: %.0f dBm",
		t.SoilLowPct, t.SoilHighPct, t.TempLowC, t.TempHighC, t.CO2HighPPM, t.LightLow, t.VoltageLowV, t.SignalLowDBm)
}

func formatCommand(c models.ActuatorCommand, src models.CommandSource) string {
	return fmt.Sprintf("Pump: %s\nFan: %s\nLEDs: %s\nSource: %s", onOff(c.WaterPump), onOff(c.Fan), onOff(c.LEDs), src)
}

func formatUpdates(u map[string]float64) string {
	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, u[name]))
	}
	return strings.Join(parts, ", ")
}

func linkText(l controller.LinkState, now time.Time) string {
	if !l.Connected {
		return "down"
	}
	if l.LastActivity.IsZero() {
		return "up"
	}
	return fmt.Sprintf("up (last activity %s ago)", now.Sub(l.LastActivity).Round(time.Second))
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
