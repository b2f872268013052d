package actuatornode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
)

// Publisher sends a raw payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Node applies coordinator commands to its outputs.
type Node struct {
	nodeID     string
	out        Output
	pub        Publisher
	stateTopic string
	now        func() time.Time
	log        *logger.Logger

	mu      sync.Mutex
	applied models.ActuatorCommand
	lastSeq uint64
}

// New builds a node. A nil pub or empty stateTopic disables reporting.
func New(nodeID string, out Output, pub Publisher, stateTopic string, log *logger.Logger) *Node {
	if log == nil {
		log = logger.Nop()
	}
	return &Node{nodeID: nodeID, out: out, pub: pub, stateTopic: stateTopic, now: time.Now, log: log}
}

// Apply sets every channel to the commanded state and reports the result.
// The report doubles as the delivery acknowledgment the coordinator waits for.
// Channels are independent: one failing output does not stop the others.
func (n *Node) Apply(ctx context.Context, env models.CommandEnvelope) error {
	channels := []struct {
		ch models.Channel
		on bool
	}{
		{models.ChannelPump, env.Command.WaterPump},
		{models.ChannelFan, env.Command.Fan},
		{models.ChannelLEDs, env.Command.LEDs},
	}

	n.mu.Lock()
	applied := n.applied
	var errs []error
	for _, c := range channels {
		if err := n.out.Set(c.ch, c.on); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.ch, err))
			continue
		}
		applied, _ = applied.With(c.ch, c.on)
	}
	n.applied = applied
	n.lastSeq = env.Seq
	n.mu.Unlock()

	err := errors.Join(errs...)
	n.log.Infow("command_applied", "seq", env.Seq, "source", env.Source,
		"pump", applied.WaterPump, "fan", applied.Fan, "leds", applied.LEDs, "error", err)

	if rerr := n.report(ctx, env, applied, errs); rerr != nil {
		n.log.Warnw("state_report_failed", "seq", env.Seq, "error", rerr)
	}
	return err
}

// Applied returns the state last written to the outputs and its sequence.
func (n *Node) Applied() (models.ActuatorCommand, uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.applied, n.lastSeq
}

func (n *Node) report(ctx context.Context, env models.CommandEnvelope, applied models.ActuatorCommand, errs []error) error {
	if n.pub == nil || n.stateTopic == "" {
		return nil
	}
	r := models.ActuatorReport{
		NodeID:    n.nodeID,
		Seq:       env.Seq,
		Source:    env.Source,
		Applied:   applied,
		AppliedAt: n.now().UTC(),
	}
	for _, e := range errs {
		r.Errors = append(r.Errors, e.Error())
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return n.pub.Publish(ctx, n.stateTopic, b)
}
