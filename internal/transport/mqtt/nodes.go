package mqtt

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

// ErrCallbackSet is returned when a second callback is registered.
var ErrCallbackSet = errors.New("callback already registered")

// SensorSource delivers readings published by the sensor node.
// It accepts exactly one callback.
type SensorSource struct {
	ps    PubSub
	topic string
	log   *logger.Logger

	mu sync.Mutex
	cb func(models.ReadingEnvelope)
}

func NewSensorSource(ps PubSub, topic string, log *logger.Logger) *SensorSource {
	if log == nil {
		log = logger.Nop()
	}
	return &SensorSource{ps: ps, topic: topic, log: log}
}

// OnReading registers cb and subscribes to the readings topic.
func (s *SensorSource) OnReading(cb func(models.ReadingEnvelope)) error {
	s.mu.Lock()
	if s.cb != nil {
		s.mu.Unlock()
		return ErrCallbackSet
	}
	s.cb = cb
	s.mu.Unlock()

	return s.ps.Subscribe(s.topic, s.handle)
}

func (s *SensorSource) handle(topic string, payload []byte) {
	var env models.ReadingEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.Warnw("reading_decode_failed", "topic", topic, "error", err)
		return
	}
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(env)
	}
}

// ErrNoActuatorAck means the actuator node did not report a command in time.
var ErrNoActuatorAck = errors.New("actuator node did not acknowledge command")

// ActuatorLink sends commands to the actuator node. Send returns nil only
// after the node reports the command's sequence number on the state topic;
// the broker accepting the publish is not enough. Without a state topic the
// broker acknowledgment is all Send waits for.
type ActuatorLink struct {
	ps         PubSub
	topic      string
	stateTopic string
	ackTimeout time.Duration
	log        *logger.Logger

	mu      sync.Mutex
	waiters map[uint64]chan models.ActuatorReport
}

func NewActuatorLink(ps PubSub, topic, stateTopic string, ackTimeout time.Duration, log *logger.Logger) *ActuatorLink {
	if log == nil {
		log = logger.Nop()
	}
	if ackTimeout <= 0 {
		ackTimeout = defaultPublishTimeout
	}
	return &ActuatorLink{
		ps:         ps,
		topic:      topic,
		stateTopic: stateTopic,
		ackTimeout: ackTimeout,
		log:        log,
		waiters:    map[uint64]chan models.ActuatorReport{},
	}
}

// Start subscribes to the actuator node's state reports.
func (a *ActuatorLink) Start() error {
	if a.stateTopic == "" {
		return nil
	}
	return a.ps.Subscribe(a.stateTopic, a.handleReport)
}

func (a *ActuatorLink) Send(ctx context.Context, cmd models.CommandEnvelope) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	if a.stateTopic == "" {
		return a.ps.Publish(ctx, a.topic, b)
	}

	// Register before publishing: the report can arrive before Publish returns.
	ack := make(chan models.ActuatorReport, 1)
	a.mu.Lock()
	a.waiters[cmd.Seq] = ack
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.waiters, cmd.Seq)
		a.mu.Unlock()
	}()

	if err := a.ps.Publish(ctx, a.topic, b); err != nil {
		return err
	}

	timer := time.NewTimer(a.ackTimeout)
	defer timer.Stop()
	select {
	case r := <-ack:
		if len(r.Errors) > 0 {
			a.log.Warnw("actuator_output_errors", "seq", r.Seq, "node_id", r.NodeID, "errors", r.Errors)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: seq %d within %s", ErrNoActuatorAck, cmd.Seq, a.ackTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *ActuatorLink) handleReport(topic string, payload []byte) {
	var r models.ActuatorReport
	if err := json.Unmarshal(payload, &r); err != nil {
		a.log.Warnw("actuator_report_decode_failed", "topic", topic, "error", err)
		return
	}
	a.mu.Lock()
	ack, ok := a.waiters[r.Seq]
	a.mu.Unlock()
	if !ok {
		a.log.Debugw("actuator_report_unmatched", "seq", r.Seq)
		return
	}
	select {
	case ack <- r:
	default:
	}
}

// ReadingPublisher is the sensor node's uplink.
type ReadingPublisher struct {
	ps    PubSub
	topic string
}

func NewReadingPublisher(ps PubSub, topic string) *ReadingPublisher {
	return &ReadingPublisher{ps: ps, topic: topic}
}

func (p *ReadingPublisher) PublishReading(ctx context.Context, env models.ReadingEnvelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	return p.ps.Publish(ctx, p.topic, b)
}

// CommandSubscriber delivers coordinator commands to a node.
type CommandSubscriber struct {
	ps    PubSub
	topic string
	log   *logger.Logger
}

func NewCommandSubscriber(ps PubSub, topic string, log *logger.Logger) *CommandSubscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &CommandSubscriber{ps: ps, topic: topic, log: log}
}

// OnCommand subscribes cb to the command topic.
func (c *CommandSubscriber) OnCommand(cb func(models.CommandEnvelope)) error {
	return c.ps.Subscribe(c.topic, func(topic string, payload []byte) {
		var env models.CommandEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.log.Warnw("command_decode_failed", "topic", topic, "error", err)
			return
		}
		cb(env)
	})
}
