package metrics

import (
	"net/http"

	"greenhouse_control/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Link label values.
const (
	LinkSensor   = "sensor"
	LinkActuator = "actuator"
)

// Metrics groups the coordinator's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	readings    prometheus.Counter
	transmits   *prometheus.CounterVec
	linkUp      *prometheus.GaugeVec
	systemState prometheus.Gauge
	alerts      prometheus.Counter
	commands    *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	persisted   *prometheus.CounterVec
}

// New builds and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenhouse_readings_total",
			Help: "Readings evaluated by the dispatcher.",
		}),
		transmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenhouse_command_transmits_total",
			Help: "Actuator command transmissions by result.",
		}, []string{"result"}),
		linkUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "greenhouse_link_up",
			Help: "Link connectivity (1 connected, 0 disconnected).",
		}, []string{"link"}),
		systemState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greenhouse_system_state",
			Help: "System state (0 normal, 1 connectivity failure, 2 sensor alert, 3 critical failure).",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenhouse_alert_notifications_total",
			Help: "Alert transitions emitted to the remote channel.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenhouse_remote_commands_total",
			Help: "Remote commands handled by kind.",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greenhouse_reading_queue_depth",
			Help: "Readings waiting for evaluation.",
		}),
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenhouse_telemetry_records_total",
			Help: "Telemetry log writes by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.readings,
		m.transmits,
		m.linkUp,
		m.systemState,
		m.alerts,
		m.commands,
		m.queueDepth,
		m.persisted,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ReadingProcessed() {
	if m == nil {
		return
	}
	m.readings.Inc()
}

func (m *Metrics) TransmitResult(ok bool) {
	if m == nil {
		return
	}
	m.transmits.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) LinkUp(link string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.linkUp.WithLabelValues(link).Set(v)
}

func (m *Metrics) SystemState(s models.SystemState) {
	if m == nil {
		return
	}
	m.systemState.Set(float64(s))
}

func (m *Metrics) AlertNotified() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

func (m *Metrics) Command(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) Persisted(ok bool) {
	if m == nil {
		return
	}
	m.persisted.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
