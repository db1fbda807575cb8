// Package promcollector exports gridstore metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	ds, err := gridstore.Open(ctx, "climate", backend,
//		gridstore.WithMetricsCollector(promcollector.New(reg, "gridstore")))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/gridstore"
)

// Collector implements gridstore.MetricsCollector with Prometheus
// counters and histograms.
type Collector struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	reads     *prometheus.CounterVec
	evictions prometheus.Counter
	evicted   prometheus.Counter
}

// New creates a Collector and registers its metrics with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of dataset operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Dataset operations by kind and outcome.",
		}, []string{"op", "status"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes moved by successful operations.",
		}, []string{"op"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Successful reads by whether they were served from memory.",
		}, []string{"cache"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Cache nodes removed by eviction or invalidation.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evicted_bytes_total",
			Help:      "Bytes released by removed cache nodes.",
		}),
	}

	reg.MustRegister(c.opLatency, c.ops, c.bytes, c.reads, c.evictions, c.evicted)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, n int64, d time.Duration, err error) {
	st := status(err)
	c.opLatency.WithLabelValues(op, st).Observe(d.Seconds())
	c.ops.WithLabelValues(op, st).Inc()
	if err == nil {
		c.bytes.WithLabelValues(op).Add(float64(n))
	}
}

// RecordRead implements gridstore.MetricsCollector.
func (c *Collector) RecordRead(n int, hit bool, d time.Duration, err error) {
	c.observe("read", int64(n), d, err)
	if err != nil {
		return
	}
	if hit {
		c.reads.WithLabelValues("hit").Inc()
	} else {
		c.reads.WithLabelValues("miss").Inc()
	}
}

// RecordFetch implements gridstore.MetricsCollector.
func (c *Collector) RecordFetch(n int, d time.Duration, err error) {
	c.observe("fetch", int64(n), d, err)
}

// RecordWrite implements gridstore.MetricsCollector.
func (c *Collector) RecordWrite(n int, d time.Duration, err error) {
	c.observe("write", int64(n), d, err)
}

// RecordEviction implements gridstore.MetricsCollector.
func (c *Collector) RecordEviction(n int64) {
	c.evictions.Inc()
	c.evicted.Add(float64(n))
}

// RecordPrefetch implements gridstore.MetricsCollector.
func (c *Collector) RecordPrefetch(n int64, d time.Duration, err error) {
	c.observe("prefetch", n, d, err)
}

var _ gridstore.MetricsCollector = (*Collector)(nil)
