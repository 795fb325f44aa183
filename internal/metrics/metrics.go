// Package metrics exposes Prometheus counters for sync, progress and refresh activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leettrack"

// Metrics holds the collectors and the registry they are registered with.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	syncPushes      *prometheus.CounterVec
	progressUpdates *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	queueDepth      prometheus.Gauge
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pushes_total",
			Help:      "Remote pushes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		progressUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_updates_total",
			Help:      "Local progress updates by resulting status.",
		}, []string{"status"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Session refreshes from the remote API by outcome.",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_depth",
			Help:      "Pushes waiting in the sync queue.",
		}),
	}

	m.registry.MustRegister(
		m.syncPushes,
		m.progressUpdates,
		m.refreshes,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SyncPush counts one push attempt.
func (m *Metrics) SyncPush(kind, outcome string) {
	if m == nil {
		return
	}
	m.syncPushes.WithLabelValues(kind, outcome).Inc()
}

// ProgressUpdate counts one local progress update.
func (m *Metrics) ProgressUpdate(status string) {
	if m == nil {
		return
	}
	m.progressUpdates.WithLabelValues(status).Inc()
}

// Refresh counts one refresh attempt.
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// QueueDepth records the current sync queue length.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
