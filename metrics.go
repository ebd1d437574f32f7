package arraystream

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// prommetrics provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordIndexBuild is called after each BuildIndex.
	// keys is the key count, err is nil if successful.
	RecordIndexBuild(keys int, duration time.Duration, err error)

	// RecordLookup is called after each position lookup.
	// values is the number of values looked up, missing how many were absent.
	RecordLookup(values, missing int, duration time.Duration)

	// RecordBatch is called after each ReadNext that did not hit the end of
	// results. rows is zero when err is set.
	RecordBatch(rows int64, duration time.Duration, err error)

	// RecordStream is called after each coordinator run.
	RecordStream(streams int, rows int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIndexBuild(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordLookup(int, int, time.Duration)          {}
func (NoopMetricsCollector) RecordBatch(int64, time.Duration, error)       {}
func (NoopMetricsCollector) RecordStream(int, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IndexBuildCount      atomic.Int64
	IndexBuildErrors     atomic.Int64
	IndexBuildKeys       atomic.Int64
	IndexBuildTotalNanos atomic.Int64
	LookupCount          atomic.Int64
	LookupValues         atomic.Int64
	LookupMissing        atomic.Int64
	BatchCount           atomic.Int64
	BatchErrors          atomic.Int64
	BatchRows            atomic.Int64
	BatchTotalNanos      atomic.Int64
	StreamCount          atomic.Int64
	StreamErrors         atomic.Int64
	StreamRows           atomic.Int64
}

// RecordIndexBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexBuild(keys int, duration time.Duration, err error) {
	b.IndexBuildCount.Add(1)
	b.IndexBuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IndexBuildErrors.Add(1)
		return
	}
	b.IndexBuildKeys.Add(int64(keys))
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(values, missing int, duration time.Duration) {
	b.LookupCount.Add(1)
	b.LookupValues.Add(int64(values))
	b.LookupMissing.Add(int64(missing))
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(rows int64, duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BatchErrors.Add(1)
		return
	}
	b.BatchRows.Add(rows)
}

// RecordStream implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStream(streams int, rows int64, duration time.Duration, err error) {
	b.StreamCount.Add(1)
	b.StreamRows.Add(rows)
	if err != nil {
		b.StreamErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IndexBuildCount:    b.IndexBuildCount.Load(),
		IndexBuildErrors:   b.IndexBuildErrors.Load(),
		IndexBuildKeys:     b.IndexBuildKeys.Load(),
		IndexBuildAvgNanos: avg(b.IndexBuildTotalNanos.Load(), b.IndexBuildCount.Load()),
		LookupCount:        b.LookupCount.Load(),
		LookupValues:       b.LookupValues.Load(),
		LookupMissing:      b.LookupMissing.Load(),
		BatchCount:         b.BatchCount.Load(),
		BatchErrors:        b.BatchErrors.Load(),
		BatchRows:          b.BatchRows.Load(),
		BatchAvgNanos:      avg(b.BatchTotalNanos.Load(), b.BatchCount.Load()),
		StreamCount:        b.StreamCount.Load(),
		StreamErrors:       b.StreamErrors.Load(),
		StreamRows:         b.StreamRows.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IndexBuildCount    int64
	IndexBuildErrors   int64
	IndexBuildKeys     int64
	IndexBuildAvgNanos int64
	LookupCount        int64
	LookupValues       int64
	LookupMissing      int64
	BatchCount         int64
	BatchErrors        int64
	BatchRows          int64
	BatchAvgNanos      int64
	StreamCount        int64
	StreamErrors       int64
	StreamRows         int64
}
