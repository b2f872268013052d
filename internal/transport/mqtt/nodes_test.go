package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"greenhouse_control/internal/actuatornode"
	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/service"
)

const (
	readingsTopic = "greenhouse/sensors/readings"
	commandsTopic = "greenhouse/actuators/commands"
	stateTopic    = "greenhouse/actuators/state"
)

func TestSensorSource_OneCallbackAndDecoding(t *testing.T) {
	bus := newFakeBus()
	src := NewSensorSource(bus, readingsTopic, nil)

	var got []models.ReadingEnvelope
	if err := src.OnReading(func(env models.ReadingEnvelope) { got = append(got, env) }); err != nil {
		t.Fatal(err)
	}
	if err := src.OnReading(func(models.ReadingEnvelope) {}); !errors.Is(err, ErrCallbackSet) {
		t.Fatalf("err = %v, want ErrCallbackSet", err)
	}

	pub := NewReadingPublisher(bus, readingsTopic)
	rssi := -60
	env := models.ReadingEnvelope{NodeID: "sensor-1", Seq: 9, SentAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), RSSI: &rssi,
		Reading: models.Reading{SoilPct: 20, Light: 100}}
	if err := pub.PublishReading(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	bus.deliver(readingsTopic, []byte("not json"))

	if len(got) != 1 {
		t.Fatalf("callbacks = %d, want 1", len(got))
	}
	if got[0].Seq != 9 || got[0].Reading.SoilPct != 20 || got[0].RSSI == nil || *got[0].RSSI != -60 {
		t.Fatalf("decoded %+v", got[0])
	}
}

func TestActuatorLinkAndCommandSubscriber(t *testing.T) {
	bus := newFakeBus()
	sub := NewCommandSubscriber(bus, commandsTopic, nil)

	var got []models.CommandEnvelope
	if err := sub.OnCommand(func(c models.CommandEnvelope) { got = append(got, c) }); err != nil {
		t.Fatal(err)
	}

	link := NewActuatorLink(bus, commandsTopic, "", 0, nil)
	cmd := models.CommandEnvelope{Seq: 3, Source: models.SourceOverride, Command: models.ActuatorCommand{Fan: true}}
	if err := link.Send(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
	bus.deliver(commandsTopic, []byte("{"))

	if len(got) != 1 || got[0] != cmd {
		t.Fatalf("got %+v", got)
	}

	bus.err = errors.New("no ack")
	if err := link.Send(context.Background(), cmd); err == nil {
		t.Fatal("expected send error")
	}
}

type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, text string) service.Reply {
	return service.Reply{Kind: "echo", OK: text != "", Text: "got " + text}
}

func TestRemoteChannel(t *testing.T) {
	bus := newFakeBus()
	rc := NewRemoteChannel(bus, "in", "out", echoExecutor{}, nil)
	if err := rc.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rc.Run(ctx)

	bus.deliver("in", []byte(`{"id":"42","text":"/estado"}`))
	bus.deliver("in", []byte("  /datos \n"))

	deadline := time.After(2 * time.Second)
	for len(bus.sent()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("replies = %d", len(bus.sent()))
		case <-time.After(5 * time.Millisecond):
		}
	}

	var first, second RemoteReply
	sent := bus.sent()
	_ = json.Unmarshal(sent[0].payload, &first)
	_ = json.Unmarshal(sent[1].payload, &second)
	if sent[0].topic != "out" || first.ID != "42" || first.Text != "got /estado" || !first.OK {
		t.Errorf("first reply %+v", first)
	}
	if second.ID != "" || second.Text != "got /datos" {
		t.Errorf("second reply %+v", second)
	}

	if err := rc.Say(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	var ann RemoteReply
	_ = json.Unmarshal(bus.sent()[2].payload, &ann)
	if ann.Kind != "announcement" || ann.Text != "hello" {
		t.Errorf("announcement %+v", ann)
	}
}

// wireActuator subscribes a real actuator node to the command topic.
func wireActuator(t *testing.T, bus *fakeBus) *actuatornode.Node {
	t.Helper()
	node := actuatornode.New("actuator-1", actuatornode.NewLogOutput(nil, 4), bus, stateTopic, nil)
	err := NewCommandSubscriber(bus, commandsTopic, nil).OnCommand(func(c models.CommandEnvelope) {
		_ = node.Apply(context.Background(), c)
	})
	if err != nil {
		t.Fatal(err)
	}
	return node
}

func TestActuatorLink_AckComesFromNodeReport(t *testing.T) {
	cmd := models.CommandEnvelope{Seq: 7, Source: models.SourcePolicy, Command: models.ActuatorCommand{WaterPump: true}}

	cases := []struct {
		name    string
		setup   func(*testing.T, *fakeBus)
		wantErr error
	}{
		{
			name:  "node applies and reports",
			setup: func(t *testing.T, bus *fakeBus) { wireActuator(t, bus) },
		},
		{
			name:    "broker accepts, no node listening",
			setup:   func(*testing.T, *fakeBus) {},
			wantErr: ErrNoActuatorAck,
		},
		{
			name: "report for another command",
			setup: func(t *testing.T, bus *fakeBus) {
				err := bus.Subscribe(commandsTopic, func(string, []byte) {
					stale, _ := json.Marshal(models.ActuatorReport{Seq: 6})
					bus.deliver(stateTopic, stale)
					bus.deliver(stateTopic, []byte("garbage"))
				})
				if err != nil {
					t.Fatal(err)
				}
			},
			wantErr: ErrNoActuatorAck,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bus := newFakeBus()
			link := NewActuatorLink(bus, commandsTopic, stateTopic, 20*time.Millisecond, nil)
			if err := link.Start(); err != nil {
				t.Fatal(err)
			}
			tc.setup(t, bus)

			err := link.Send(context.Background(), cmd)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("Send: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestActuatorLink_ContextCancelWhileWaiting(t *testing.T) {
	bus := newFakeBus()
	link := NewActuatorLink(bus, commandsTopic, stateTopic, time.Hour, nil)
	if err := link.Start(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := link.Send(ctx, models.CommandEnvelope{Seq: 1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestActuatorLink_SilentNodeTakesLinkDown(t *testing.T) {
	bus := newFakeBus()
	link := NewActuatorLink(bus, commandsTopic, stateTopic, 20*time.Millisecond, nil)
	if err := link.Start(); err != nil {
		t.Fatal(err)
	}

	th, err := controller.NewThresholdStore(models.DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	d := controller.New(controller.Deps{
		Thresholds:  th,
		Store:       controller.NewStateStore(nil),
		Tracker:     controller.NewAlertTracker(),
		Links:       controller.NewLinkMonitor(time.Minute, nil),
		Transmitter: link,
	}, controller.Options{})

	reading := models.ReadingEnvelope{NodeID: "sensor-1", Seq: 1, Reading: models.Reading{
		TemperatureC: 22, HumidityPct: 60, Light: 800, CO2PPM: 450, SoilPct: 50, VoltageV: 6,
	}}

	// Broker up, actuator node gone: the publish succeeds but nothing reports back.
	d.HandleReading(context.Background(), reading)
	if got := d.Tracker.Current(); !got.ActuatorLinkDown {
		t.Fatalf("expected actuator_link_down, flags %+v", got)
	}
	if !d.Tracker.HasCriticalFailure() {
		t.Fatalf("silent actuator node must count as a critical failure")
	}
	if len(bus.sent()) == 0 {
		t.Fatalf("command was never published")
	}

	node := wireActuator(t, bus)
	reading.Seq = 2
	d.HandleReading(context.Background(), reading)
	if d.Tracker.Current().ActuatorLinkDown {
		t.Fatalf("link should recover once the node reports")
	}
	if applied, seq := node.Applied(); seq == 0 || applied.WaterPump {
		t.Fatalf("node state %+v seq %d", applied, seq)
	}
}
