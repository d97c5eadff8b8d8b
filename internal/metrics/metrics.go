// Package metrics provides Prometheus metrics for snipd.
//
// Features:
//   - Counters for expansions, match misses, hook restarts, buffer resets
//   - Gauges for index size and pause state
//   - A private registry, served by the status server
//
// All Record methods are safe on a nil *Metrics, so components can run
// without metrics wired in.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snipd"

// Metrics holds all snipd metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	ExpansionsTotal   *prometheus.CounterVec
	MatchMissesTotal  *prometheus.CounterVec
	HookRestartsTotal *prometheus.CounterVec
	BufferResetsTotal *prometheus.CounterVec
	DroppedEvents     prometheus.Counter

	// Gauges
	IndexSequences prometheus.Gauge
	IndexSnippets  prometheus.Gauge
	Paused         prometheus.Gauge

	// Histograms
	ReplacementDuration prometheus.Histogram
}

// New creates and registers all snipd metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ExpansionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Replacements attempted, by method and outcome",
		}, []string{"method", "outcome"}),
		MatchMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_misses_total",
			Help:      "Terminator keys that did not select a snippet",
		}, []string{"reason"}),
		HookRestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_restarts_total",
			Help:      "Keyboard hook sessions torn down and recreated",
		}, []string{"reason"}),
		BufferResetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_resets_total",
			Help:      "Input buffer clears not caused by a terminator key",
		}, []string{"reason"}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Key events dropped because the worker queue was full",
		}),

		IndexSequences: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_sequences",
			Help:      "Distinct scan-code sequences in the active index",
		}),
		IndexSnippets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_snippets",
			Help:      "Snippets in the active index",
		}),
		Paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "1 while expansion is paused",
		}),

		ReplacementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replacement_duration_seconds",
			Help:      "Time spent erasing and pasting one replacement",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2},
		}),
	}

	registry.MustRegister(
		m.ExpansionsTotal,
		m.MatchMissesTotal,
		m.HookRestartsTotal,
		m.BufferResetsTotal,
		m.DroppedEvents,
		m.IndexSequences,
		m.IndexSnippets,
		m.Paused,
		m.ReplacementDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
