// Package metrics exposes session activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the annotator.
type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	EffectsTotal      *prometheus.CounterVec
	RenderErrorsTotal *prometheus.CounterVec
	SyncTotal         *prometheus.CounterVec
	ApplyDuration     prometheus.Histogram
	AnnotationCount   prometheus.Gauge
	StreamClients     prometheus.GaugeFunc

	gatherer prometheus.Gatherer
}

// NewMetrics registers and returns all metrics on reg. clients, when not
// nil, reports the number of connected stream subscribers.
func NewMetrics(reg *prometheus.Registry, clients func() int) *Metrics {
	if clients == nil {
		clients = func() int { return 0 }
	}
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotator_events_total",
			Help: "Input events applied to the annotation engine",
		}, []string{"event"}),
		EffectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotator_effects_total",
			Help: "Effects produced by the annotation engine",
		}, []string{"effect"}),
		RenderErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotator_render_errors_total",
			Help: "Chart surface calls that failed",
		}, []string{"op"}),
		SyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotator_sync_total",
			Help: "Pane synchronisation events (result=propagated|echo)",
		}, []string{"kind", "result"}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "annotator_apply_duration_seconds",
			Help:    "Time to apply one event including rendering",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		AnnotationCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "annotator_annotations",
			Help: "Committed annotations in the current session",
		}),
		StreamClients: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "annotator_stream_clients",
			Help: "Connected state stream subscribers",
		}, func() float64 { return float64(clients()) }),
		gatherer: reg,
	}

	reg.MustRegister(
		m.EventsTotal,
		m.EffectsTotal,
		m.RenderErrorsTotal,
		m.SyncTotal,
		m.ApplyDuration,
		m.AnnotationCount,
		m.StreamClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) EventApplied(name string, d time.Duration) {
	m.EventsTotal.WithLabelValues(name).Inc()
	m.ApplyDuration.Observe(d.Seconds())
}

func (m *Metrics) Effect(kind string) { m.EffectsTotal.WithLabelValues(kind).Inc() }

func (m *Metrics) RenderError(op string) { m.RenderErrorsTotal.WithLabelValues(op).Inc() }

func (m *Metrics) Synced(kind string, propagated bool) {
	result := "echo"
	if propagated {
		result = "propagated"
	}
	m.SyncTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Annotations(n int) { m.AnnotationCount.Set(float64(n)) }
