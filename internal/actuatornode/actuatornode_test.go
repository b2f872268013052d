package actuatornode

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"greenhouse_control/internal/models"
)

type failingOutput struct {
	*LogOutput
	fail models.Channel
}

func (f failingOutput) Set(ch models.Channel, on bool) error {
	if ch == f.fail {
		return errors.New("relay stuck")
	}
	return f.LogOutput.Set(ch, on)
}

type recordingPublisher struct {
	topic    string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.topic = topic
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestLogOutput_RejectsUnknownChannel(t *testing.T) {
	out := NewLogOutput(nil, 0)
	if err := out.Set("heater", true); err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if err := out.Set(models.ChannelFan, true); err != nil {
		t.Fatal(err)
	}
	if !out.State(models.ChannelFan) {
		t.Fatal("fan state not recorded")
	}
}

func TestNode_ApplyDrivesOutputsAndReports(t *testing.T) {
	out := NewLogOutput(nil, 4)
	pub := &recordingPublisher{}
	n := New("ACT_1", out, pub, "greenhouse/actuators/state", nil)
	n.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	cmd := models.ActuatorCommand{WaterPump: true, LEDs: true}
	if err := n.Apply(context.Background(), models.CommandEnvelope{Seq: 7, Source: models.SourcePolicy, Command: cmd}); err != nil {
		t.Fatal(err)
	}

	if !out.State(models.ChannelPump) || out.State(models.ChannelFan) || !out.State(models.ChannelLEDs) {
		t.Fatal("outputs do not match the command")
	}
	applied, seq := n.Applied()
	if applied != cmd || seq != 7 {
		t.Fatalf("applied %+v seq %d", applied, seq)
	}

	if pub.topic != "greenhouse/actuators/state" || len(pub.payloads) != 1 {
		t.Fatalf("report not published: %q %d", pub.topic, len(pub.payloads))
	}
	var r models.ActuatorReport
	if err := json.Unmarshal(pub.payloads[0], &r); err != nil {
		t.Fatal(err)
	}
	if r.NodeID != "ACT_1" || r.Seq != 7 || r.Applied != cmd || len(r.Errors) != 0 {
		t.Fatalf("report %+v", r)
	}
}

func TestNode_OneFailingChannelDoesNotBlockOthers(t *testing.T) {
	out := failingOutput{LogOutput: NewLogOutput(nil, 4), fail: models.ChannelFan}
	pub := &recordingPublisher{err: errors.New("broker down")}
	n := New("ACT_1", out, pub, "state", nil)

	err := n.Apply(context.Background(), models.CommandEnvelope{Seq: 2, Command: models.ActuatorCommand{WaterPump: true, Fan: true, LEDs: true}})
	if err == nil {
		t.Fatal("expected the fan failure to be reported")
	}
	applied, _ := n.Applied()
	if !applied.WaterPump || applied.Fan || !applied.LEDs {
		t.Fatalf("applied %+v", applied)
	}

	var r models.ActuatorReport
	_ = json.Unmarshal(pub.payloads[0], &r)
	if len(r.Errors) != 1 {
		t.Fatalf("report errors %v", r.Errors)
	}
}

func TestNode_NoReportWithoutTopic(t *testing.T) {
	pub := &recordingPublisher{}
	n := New("ACT_1", NewLogOutput(nil, 4), pub, "", nil)
	if err := n.Apply(context.Background(), models.CommandEnvelope{Seq: 1}); err != nil {
		t.Fatal(err)
	}
	if len(pub.payloads) != 0 {
		t.Fatal("report published without a state topic")
	}
}
