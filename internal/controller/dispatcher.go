package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/metrics"
	"greenhouse_control/internal/models"

	"github.com/google/uuid"
)

// ErrAlreadyAttached is returned when a second sample source is attached.
var ErrAlreadyAttached = errors.New("a sample source is already attached")

// SampleSource delivers readings from the sensor node. It accepts exactly
// one callback and may never invoke it.
type SampleSource interface {
	OnReading(func(models.ReadingEnvelope)) error
}

// Transmitter sends a command to the actuator node. A nil error means the
// node acknowledged delivery.
type Transmitter interface {
	Send(ctx context.Context, cmd models.CommandEnvelope) error
}

// Notifier receives alert transitions.
type Notifier interface {
	Notify(ctx context.Context, a models.Alert) error
}

// Options tune the dispatcher loops.
type Options struct {
	HealthInterval time.Duration
	QueueSize      int
	Now            func() time.Time
}

// Deps are the shared structures the dispatcher drives. Consumers (display,
// persistence, remote commands) hold the same pointers and read concurrently.
type Deps struct {
	Thresholds  *ThresholdStore
	Store       *StateStore
	Tracker     *AlertTracker
	Links       *LinkMonitor
	Transmitter Transmitter
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Log         *logger.Logger
}

// Dispatcher runs the reading cycle and the health cycle.
type Dispatcher struct {
	Deps
	opts Options

	queue    chan models.ReadingEnvelope
	stopped  chan struct{}
	stopOnce sync.Once
	attached atomic.Bool

	// pending holds the newest alert not yet handed to the notifier. A newer
	// transition overwrites it, so a stalled notifier always resumes with the
	// current state.
	pendingMu sync.Mutex
	pending   *models.Alert
	alertSig  chan struct{}

	// sendMu serializes transmissions so the wire always ends at the latest command.
	sendMu sync.Mutex
}

// New wires a dispatcher. Missing optional collaborators get no-op defaults.
func New(deps Deps, opts Options) *Dispatcher {
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Dispatcher{
		Deps:     deps,
		opts:     opts,
		queue:    make(chan models.ReadingEnvelope, opts.QueueSize),
		stopped:  make(chan struct{}),
		alertSig: make(chan struct{}, 1),
	}
}

// Attach registers the dispatcher's single reading callback with src.
func (d *Dispatcher) Attach(src SampleSource) error {
	if !d.attached.CompareAndSwap(false, true) {
		return ErrAlreadyAttached
	}
	return src.OnReading(d.enqueue)
}

// enqueue blocks until the reading is queued so none is dropped or coalesced.
func (d *Dispatcher) enqueue(env models.ReadingEnvelope) {
	select {
	case d.queue <- env:
		d.Metrics.QueueDepth(len(d.queue))
	case <-d.stopped:
	}
}

// Run starts the reading, health and notification loops and blocks until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		d.readingLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		d.healthLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		d.notifyLoop(ctx)
	}()

	<-ctx.Done()
	d.stopOnce.Do(func() { close(d.stopped) })
	wg.Wait()
	d.Log.Infow("dispatcher_stopped")
}

func (d *Dispatcher) readingLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-d.queue:
			d.Metrics.QueueDepth(len(d.queue))
			d.HandleReading(ctx, env)
		}
	}
}

func (d *Dispatcher) healthLoop(ctx context.Context) {
	t := time.NewTicker(d.opts.HealthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if alert, changed := d.Tick(); changed {
				d.offerAlert(alert)
			}
		}
	}
}

// offerAlert stores a as the next alert to deliver, replacing any alert the
// notifier has not picked up yet.
func (d *Dispatcher) offerAlert(a models.Alert) {
	d.pendingMu.Lock()
	if prev := d.pending; prev != nil {
		d.Log.Infow("alert_coalesced", "replaced_id", prev.ID, "alert_id", a.ID, "state", a.State.String())
	}
	d.pending = &a
	d.pendingMu.Unlock()

	select {
	case d.alertSig <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) takeAlert() (models.Alert, bool) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	if d.pending == nil {
		return models.Alert{}, false
	}
	a := *d.pending
	d.pending = nil
	return a, true
}

func (d *Dispatcher) notifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.alertSig:
			a, ok := d.takeAlert()
			if !ok || d.Notifier == nil {
				continue
			}
			if err := d.Notifier.Notify(ctx, a); err != nil {
				d.Log.Warnw("alert_notify_failed", "alert_id", a.ID, "error", err)
				continue
			}
			d.Metrics.AlertNotified()
		}
	}
}

// HandleReading runs one full cycle for a reading: link activity, policy
// evaluation, publish, transmission and flag update.
func (d *Dispatcher) HandleReading(ctx context.Context, env models.ReadingEnvelope) {
	if d.Links.SensorActivity(env.NodeID) {
		d.Log.Infow("sensor_link_up", "node_id", env.NodeID)
	}
	d.Metrics.LinkUp(metrics.LinkSensor, true)
	if env.RSSI != nil {
		d.Links.ObserveSignal(*env.RSSI)
	}

	th := d.Thresholds.Get()
	cmd, flags := Evaluate(env.Reading, th)
	snap := d.Store.Publish(env.Reading, cmd)
	d.Tracker.ObserveSensor(flags)

	if err := d.transmit(ctx); err != nil {
		d.Log.Warnw("actuator_send_failed", "seq", snap.Seq, "error", err)
	}
	d.Tracker.ObserveLinks(d.Links.Flags(th.SignalLowDBm))
	d.Metrics.ReadingProcessed()

	d.Log.Debugw("reading_processed",
		"node_id", env.NodeID,
		"seq", env.Seq,
		"pump", cmd.WaterPump,
		"fan", cmd.Fan,
		"leds", cmd.LEDs,
		"active", flags.Active(),
	)
}

// Tick polls the upstream timeout, refreshes the link flags and checks for
// a flag transition. It must be the only caller of the tracker's transition
// check. The returned alert is meaningful only when changed is true.
func (d *Dispatcher) Tick() (models.Alert, bool) {
	sensor := d.Links.CheckSensor()
	status := d.Links.Status()
	d.Metrics.LinkUp(metrics.LinkSensor, sensor.Connected)
	d.Metrics.LinkUp(metrics.LinkActuator, status.Actuator.Connected)

	th := d.Thresholds.Get()
	d.Tracker.ObserveLinks(d.Links.Flags(th.SignalLowDBm))

	flags, changed := d.Tracker.Transition()
	state := models.Classify(flags)
	d.Metrics.SystemState(state)
	if !changed {
		return models.Alert{}, false
	}

	alert := models.Alert{
		ID:         uuid.NewString(),
		OccurredAt: d.opts.Now().UTC(),
		State:      state,
		Flags:      flags,
		Active:     flags.Active(),
	}
	if snap := d.Store.Snapshot(); snap.Valid {
		r := snap.Reading
		alert.Reading = &r
	}
	d.Log.Infow("alert_transition", "alert_id", alert.ID, "state", state.String(), "active", alert.Active)
	return alert, true
}

// Override forces one actuator channel until the next reading and sends the
// resulting command right away. A failed send only updates the actuator link.
func (d *Dispatcher) Override(ctx context.Context, ch models.Channel, on bool) (Snapshot, error) {
	snap, err := d.Store.Override(ch, on)
	if err != nil {
		return Snapshot{}, err
	}
	if err := d.transmit(ctx); err != nil {
		d.Log.Warnw("actuator_send_failed", "seq", snap.Seq, "source", models.SourceOverride, "error", err)
	}
	d.Tracker.ObserveLinks(d.Links.Flags(d.Thresholds.Get().SignalLowDBm))
	d.Log.Infow("actuator_override", "channel", ch, "on", on, "seq", snap.Seq)
	return snap, nil
}

// transmit sends whatever command is current at send time.
func (d *Dispatcher) transmit(ctx context.Context) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	snap := d.Store.Snapshot()
	if !snap.Valid || d.Transmitter == nil {
		return nil
	}
	err := d.Transmitter.Send(ctx, models.CommandEnvelope{
		Seq:     snap.Seq,
		Source:  snap.Source,
		Command: snap.Command,
	})
	if d.Links.ActuatorResult(err == nil) {
		d.Log.Infow("actuator_link_changed", "connected", err == nil)
	}
	d.Metrics.TransmitResult(err == nil)
	d.Metrics.LinkUp(metrics.LinkActuator, err == nil)
	return err
}
