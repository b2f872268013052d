package sensornode

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
)

// Publisher sends one reading envelope to the coordinator.
type Publisher interface {
	PublishReading(ctx context.Context, env models.ReadingEnvelope) error
}

// Options configures a Node.
type Options struct {
	NodeID          string
	SampleInterval  time.Duration
	PublishInterval time.Duration
	Now             func() time.Time
	// RSSI reports the radio signal in dBm; nil omits it from the envelope.
	RSSI func() int
}

// Node samples the environment on one cadence and publishes the latest
// sample on another. The two loops share only the latest value.
type Node struct {
	env  *Environment
	pub  Publisher
	opts Options
	log  *logger.Logger

	mu     sync.Mutex
	latest models.Reading
	have   bool
	seq    uint64
}

func New(env *Environment, pub Publisher, opts Options, log *logger.Logger) *Node {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 1500 * time.Millisecond
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = 3 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Node{env: env, pub: pub, opts: opts, log: log}
}

// SimulatedRSSI returns a generator that wanders around base dBm.
func SimulatedRSSI(base int) func() int {
	return func() int { return base + rand.IntN(7) - 3 }
}

// ObserveCommand feeds a coordinator command back into the simulation.
func (n *Node) ObserveCommand(c models.CommandEnvelope) {
	n.env.SetCommand(c.Command)
	n.log.Debugw("command_observed", "seq", c.Seq, "source", c.Source,
		"pump", c.Command.WaterPump, "fan", c.Command.Fan, "leds", c.Command.LEDs)
}

// SampleOnce takes one sample and stores it as the latest.
func (n *Node) SampleOnce() models.Reading {
	r := n.env.Sample(n.opts.Now())
	n.mu.Lock()
	n.latest, n.have = r, true
	n.mu.Unlock()
	return r
}

// PublishOnce sends a copy of the latest sample. It reports false when there
// is nothing sampled yet.
func (n *Node) PublishOnce(ctx context.Context) (bool, error) {
	n.mu.Lock()
	if !n.have {
		n.mu.Unlock()
		return false, nil
	}
	n.seq++
	env := models.ReadingEnvelope{
		NodeID:  n.opts.NodeID,
		Seq:     n.seq,
		SentAt:  n.opts.Now().UTC(),
		Reading: n.latest,
	}
	n.mu.Unlock()

	if n.opts.RSSI != nil {
		rssi := n.opts.RSSI()
		env.RSSI = &rssi
	}
	return true, n.pub.PublishReading(ctx, env)
}

// Run samples and publishes until ctx is canceled.
func (n *Node) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		n.sampleLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		n.publishLoop(ctx)
	}()
	wg.Wait()
}

func (n *Node) sampleLoop(ctx context.Context) {
	t := time.NewTicker(n.opts.SampleInterval)
	defer t.Stop()
	n.SampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.SampleOnce()
		}
	}
}

func (n *Node) publishLoop(ctx context.Context) {
	t := time.NewTicker(n.opts.PublishInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sent, err := n.PublishOnce(ctx)
			switch {
			case err != nil:
				// retried on the next tick
				n.log.Warnw("reading_publish_failed", "error", err)
			case sent:
				n.log.Debugw("reading_published")
			}
		}
	}
}
