// Package prommetrics exports reader, stream and index metrics to
// Prometheus.
package prommetrics

import (
	"time"

	"github.com/hupe1980/arraystream"
	"github.com/prometheus/client_golang/prometheus"
)

var _ arraystream.MetricsCollector = (*Collector)(nil)

// Collector implements arraystream.MetricsCollector.
type Collector struct {
	latency       *prometheus.HistogramVec
	indexKeys     prometheus.Counter
	lookupValues  prometheus.Counter
	lookupMissing prometheus.Counter
	batches       *prometheus.CounterVec
	rows          *prometheus.CounterVec
	streams       prometheus.Histogram
}

// New creates a Collector and registers its metrics with reg. namespace
// prefixes every metric name; an empty namespace uses "arraystream".
func New(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = "arraystream"
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of index builds, lookups, batch reads and stream runs",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op", "status"}),
		indexKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_keys_total",
			Help:      "Keys indexed by successful index builds",
		}),
		lookupValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_values_total",
			Help:      "Values looked up in indexes",
		}),
		lookupMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_missing_total",
			Help:      "Looked up values absent from the index",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch reads by status",
		}, []string{"status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows returned by readers and stream runs",
		}, []string{"source"}),
		streams: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_readers",
			Help:      "Readers per stream run",
			Buckets:   prometheus.LinearBuckets(1, 1, 16),
		}),
	}

	reg.MustRegister(c.latency, c.indexKeys, c.lookupValues, c.lookupMissing, c.batches, c.rows, c.streams)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordIndexBuild implements arraystream.MetricsCollector.
func (c *Collector) RecordIndexBuild(keys int, duration time.Duration, err error) {
	c.latency.WithLabelValues("index_build", status(err)).Observe(duration.Seconds())
	if err == nil {
		c.indexKeys.Add(float64(keys))
	}
}

// RecordLookup implements arraystream.MetricsCollector.
func (c *Collector) RecordLookup(values, missing int, duration time.Duration) {
	c.latency.WithLabelValues("lookup", "success").Observe(duration.Seconds())
	c.lookupValues.Add(float64(values))
	c.lookupMissing.Add(float64(missing))
}

// RecordBatch implements arraystream.MetricsCollector.
func (c *Collector) RecordBatch(rows int64, duration time.Duration, err error) {
	s := status(err)
	c.latency.WithLabelValues("read", s).Observe(duration.Seconds())
	c.batches.WithLabelValues(s).Inc()
	c.rows.WithLabelValues("reader").Add(float64(rows))
}

// RecordStream implements arraystream.MetricsCollector.
func (c *Collector) RecordStream(streams int, rows int64, duration time.Duration, err error) {
	c.latency.WithLabelValues("stream", status(err)).Observe(duration.Seconds())
	c.streams.Observe(float64(streams))
	c.rows.WithLabelValues("stream").Add(float64(rows))
}
