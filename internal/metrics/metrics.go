package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memberbot"

// Metrics agrupa los colectores del bot sobre un registry propio.
type Metrics struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	failures     *prometheus.CounterVec
	sweepResets  prometheus.Counter
	eventLatency *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events by platform, kind and outcome.",
		}, []string{"platform", "kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Committed member state transitions.",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effect_failures_total",
			Help:      "Collaborator failures by effect kind.",
		}, []string{"effect"}),
		sweepResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_resets_total",
			Help:      "Members reset by the staleness sweep.",
		}),
		eventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling one event, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"}),
	}
	reg.MustRegister(
		m.events, m.transitions, m.failures, m.sweepResets, m.eventLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler expone el registry para GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Los metodos aceptan receptor nil para que los tests no necesiten Metrics.

func (m *Metrics) ObserveEvent(platform, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(platform, kind, outcome).Inc()
	m.eventLatency.WithLabelValues(platform).Observe(d.Seconds())
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) EffectFailed(effect string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(effect).Inc()
}

func (m *Metrics) StaleReset() {
	if m == nil {
		return
	}
	m.sweepResets.Inc()
}
