package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blegateway"

// Sources are read on every scrape. Nil functions are skipped.
type Sources struct {
	Devices    func() int
	State      func() int
	Published  func() uint64
	Suppressed func() uint64
	SendErrors func() uint64
	Replays    func() uint64
	Seen       func() uint64
	Dropped    func() uint64
}

// Metrics holds the gateway's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	classifications *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	scans           *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New(src Sources) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "classifications_total",
				Help:      "Accepted observations by classification",
			},
			[]string{"classification"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "connectivity",
				Name:      "transitions_total",
				Help:      "Connectivity state transitions by target state",
			},
			[]string{"to"},
		),
		scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scanner",
				Name:      "scans_total",
				Help:      "Completed scan windows by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.classifications,
		m.transitions,
		m.scans,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.gauge("registry", "devices", "Distinct addresses in the registry", src.Devices)
	m.gauge("connectivity", "state", "Connectivity state (0 assoc down, 1 session down, 2 session up)", src.State)
	m.counter("publish", "sent_total", "Messages accepted by the MQTT session", src.Published)
	m.counter("publish", "suppressed_total", "Messages dropped because the session was down", src.Suppressed)
	m.counter("publish", "errors_total", "Messages the MQTT session refused", src.SendErrors)
	m.counter("publish", "replays_total", "Full registry replays", src.Replays)
	m.counter("scanner", "advertisements_total", "Advertisement reports received", src.Seen)
	m.counter("scanner", "dropped_total", "Advertisement reports dropped on a full buffer", src.Dropped)

	return m
}

func (m *Metrics) gauge(subsystem, name, help string, fn func() int) {
	if fn == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help},
		func() float64 { return float64(fn()) },
	))
}

func (m *Metrics) counter(subsystem, name, help string, fn func() uint64) {
	if fn == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help},
		func() float64 { return float64(fn()) },
	))
}

// ObserveClassification counts one accepted observation.
func (m *Metrics) ObserveClassification(classification string) {
	m.classifications.WithLabelValues(classification).Inc()
}

// ObserveTransition counts one state change.
func (m *Metrics) ObserveTransition(to string) {
	m.transitions.WithLabelValues(to).Inc()
}

// ObserveScan counts one completed scan window.
func (m *Metrics) ObserveScan(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.scans.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
