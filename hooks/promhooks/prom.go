// Package promhooks exports replica events as Prometheus metrics.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/unkn0wn-root/replica"
)

// Hooks implements replica.Hooks with counters, a load latency histogram and
// observer gauges, all labeled by replica name.
type Hooks struct {
	loadsStarted   *prometheus.CounterVec
	loadsFinished  *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	storageErrors  *prometheus.CounterVec
	stale          *prometheus.CounterVec
	evictions      *prometheus.CounterVec
	observers      *prometheus.GaugeVec
	activeObserver *prometheus.GaugeVec
}

var _ replica.Hooks = (*Hooks)(nil)

// New registers the metrics with reg. A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Hooks{
		loadsStarted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_loads_started_total",
				Help: "Total number of loads started",
			},
			[]string{"replica"},
		),
		loadsFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_loads_finished_total",
				Help: "Total number of finished loads by outcome",
			},
			[]string{"replica", "outcome"}, // "success", "error", "canceled"
		),
		loadDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replica_load_duration_seconds",
				Help:    "Duration of loads including the storage read",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"replica", "outcome"},
		),
		storageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_storage_errors_total",
				Help: "Total number of failed storage operations",
			},
			[]string{"replica", "op"}, // "read", "write", "remove"
		),
		stale: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_stale_total",
				Help: "Total number of times fresh data became stale",
			},
			[]string{"replica"},
		),
		evictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_evictions_total",
				Help: "Total number of in-memory evictions of unobserved replicas",
			},
			[]string{"replica"},
		),
		observers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replica_observers",
				Help: "Current number of observers",
			},
			[]string{"replica"},
		),
		activeObserver: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replica_active_observers",
				Help: "Current number of active observers",
			},
			[]string{"replica"},
		),
	}
}

func (h *Hooks) LoadStarted(name string) { h.loadsStarted.WithLabelValues(name).Inc() }

func (h *Hooks) LoadFinished(name, outcome string, took time.Duration) {
	h.loadsFinished.WithLabelValues(name, outcome).Inc()
	h.loadDuration.WithLabelValues(name, outcome).Observe(took.Seconds())
}

func (h *Hooks) StorageFailed(name, op string, _ error) {
	h.storageErrors.WithLabelValues(name, op).Inc()
}

func (h *Hooks) BecameStale(name string) { h.stale.WithLabelValues(name).Inc() }
func (h *Hooks) Evicted(name string)     { h.evictions.WithLabelValues(name).Inc() }

func (h *Hooks) ObserversChanged(name string, observers, active int) {
	h.observers.WithLabelValues(name).Set(float64(observers))
	h.activeObserver.WithLabelValues(name).Set(float64(active))
}
