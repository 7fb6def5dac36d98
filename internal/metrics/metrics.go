// Package metrics exposes Prometheus instruments for the sync session.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "followtrack"

// Metrics groups the session instruments.
type Metrics struct {
	Registry *prometheus.Registry

	syncs         *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	cacheErrors   *prometheus.CounterVec
	relationships *prometheus.GaugeVec
	unread        prometheus.Gauge
	undo          *prometheus.CounterVec
}

// New registers all instruments on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		syncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Sync attempts by result.",
		}, []string{"result"}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of completed syncs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}),
		cacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache backend failures treated as absent.",
		}, []string{"op"}),
		relationships: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relationships",
			Help:      "Size of each relationship set in the current snapshot.",
		}, []string{"set"}),
		unread: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_unread",
			Help:      "Unread notifications in the feed.",
		}),
		undo: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_records_total",
			Help:      "Undo records by outcome.",
		}, []string{"outcome"}),
	}
}

// Sync records one sync attempt. d is observed only for result "ok".
func (m *Metrics) Sync(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result).Inc()
	if result == "ok" {
		m.syncDuration.Observe(d.Seconds())
	}
}

// CacheError counts a failed cache operation.
func (m *Metrics) CacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}

// Relationships sets the relationship gauges.
func (m *Metrics) Relationships(sizes map[string]int) {
	if m == nil {
		return
	}
	for set, n := range sizes {
		m.relationships.WithLabelValues(set).Set(float64(n))
	}
}

// Unread sets the unread notification gauge.
func (m *Metrics) Unread(n int) {
	if m == nil {
		return
	}
	m.unread.Set(float64(n))
}

// Undo counts an undo record outcome: issued, undone, dismissed or expired.
func (m *Metrics) Undo(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.undo.WithLabelValues(outcome).Add(float64(n))
}
