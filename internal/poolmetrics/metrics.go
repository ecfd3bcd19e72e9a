// Package poolmetrics provides Prometheus instrumentation for a writer
// pool, grounded on the Collector shape of the retrieval pack's
// pkg/metrics package: a small struct of pre-registered vectors handed
// to the component that owns them, rather than bare package globals.
package poolmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector tracks acquisitions, lock contention, eviction, and pool size
// for a single Pool instance. Create one per pool with NewCollector and
// pass it in with writerpool.WithMetrics.
type Collector struct {
	name string

	acquires   *prometheus.CounterVec
	creates    *prometheus.CounterVec
	createErrs *prometheus.CounterVec
	lockBusy   *prometheus.CounterVec
	evictions  *prometheus.CounterVec
	acquireLatency *prometheus.HistogramVec
	size       prometheus.Gauge
	busy       prometheus.Gauge
}

// NewCollector registers a fresh set of vectors labeled by pool name. Panics
// if a second Collector is registered against the same reg, matching
// promauto's behavior: the counter and histogram vectors carry the pool name
// as a variable label rather than a constant one, so a distinct name does
// not avoid the collision. Multiple pools in one process need distinct
// registries.
func NewCollector(name string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		name: name,
		acquires: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writerpool",
			Name:      "acquires_total",
			Help:      "Writer acquisitions by outcome.",
		}, []string{"pool", "outcome"}),
		creates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writerpool",
			Name:      "creates_total",
			Help:      "Writers opened from disk (cache misses).",
		}, []string{"pool"}),
		createErrs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writerpool",
			Name:      "create_errors_total",
			Help:      "Writer creation failures, cached and resent to callers.",
		}, []string{"pool"}),
		lockBusy: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writerpool",
			Name:      "lock_busy_total",
			Help:      "Administrative lock attempts that found the table busy.",
		}, []string{"pool"}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writerpool",
			Name:      "evictions_total",
			Help:      "Idle writers closed by a release-all pass.",
		}, []string{"pool", "reason"}),
		acquireLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "writerpool",
			Name:      "acquire_latency_seconds",
			Help:      "Time spent in Get/GetOrPublishCommand.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"}),
		size: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "writerpool",
			Name:        "entries",
			Help:        "Entries currently tracked by the pool.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
		busy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "writerpool",
			Name:        "busy_entries",
			Help:        "Entries currently held by a live owner.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
	}
}

func (c *Collector) ObserveAcquire(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.acquires.WithLabelValues(c.name, outcome).Inc()
	c.acquireLatency.WithLabelValues(c.name).Observe(d.Seconds())
}

func (c *Collector) ObserveCreate() {
	if c == nil {
		return
	}
	c.creates.WithLabelValues(c.name).Inc()
}

func (c *Collector) ObserveCreateError() {
	if c == nil {
		return
	}
	c.createErrs.WithLabelValues(c.name).Inc()
}

func (c *Collector) ObserveLockBusy() {
	if c == nil {
		return
	}
	c.lockBusy.WithLabelValues(c.name).Inc()
}

func (c *Collector) ObserveEviction(reason string) {
	if c == nil {
		return
	}
	c.evictions.WithLabelValues(c.name, reason).Inc()
}

func (c *Collector) SetSizes(total, busy int) {
	if c == nil {
		return
	}
	c.size.Set(float64(total))
	c.busy.Set(float64(busy))
}
