// Package metrics exposes prometheus counters for tournament progression.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sportal"

type Metrics struct {
	registry *prometheus.Registry

	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	matchesWritten *prometheus.CounterVec
	staleResults   prometheus.Counter
	liveBroadcasts *prometheus.CounterVec
}

// New registers the progression collectors on a private registry, along with
// the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progression_operations_total",
			Help:      "Progression operations by name, tournament format and outcome.",
		}, []string{"operation", "format", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "progression_operation_duration_seconds",
			Help:      "Time spent in progression operations, including the database transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		matchesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_written_total",
			Help:      "Match rows created, updated or deleted.",
		}, []string{"action"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Elimination results reset because an earlier result was corrected.",
		}),
		liveBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_broadcasts_total",
			Help:      "Change notifications published to live clients.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.duration,
		m.matchesWritten,
		m.staleResults,
		m.liveBroadcasts,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation records one finished operation. A nil receiver records
// nothing so callers need no metrics in tests.
func (m *Metrics) ObserveOperation(operation, format string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, format, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) MatchesWritten(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.matchesWritten.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) StaleResults(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.staleResults.Add(float64(n))
}

func (m *Metrics) Broadcast(messageType string) {
	if m == nil {
		return
	}
	m.liveBroadcasts.WithLabelValues(messageType).Inc()
}
