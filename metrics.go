package gridstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// promcollector package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordRead is called after each Read. hit is true when the bytes came
	// from the cache or the prefetch slot.
	RecordRead(bytes int, hit bool, duration time.Duration, err error)

	// RecordFetch is called after each backend fetch made on a cache miss.
	RecordFetch(bytes int, duration time.Duration, err error)

	// RecordWrite is called after each Write.
	RecordWrite(bytes int, duration time.Duration, err error)

	// RecordEviction is called for each cache node removed by eviction or
	// invalidation.
	RecordEviction(bytes int64)

	// RecordPrefetch is called after each Prefetch.
	RecordPrefetch(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordFetch(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordEviction(int64)                       {}
func (NoopMetricsCollector) RecordPrefetch(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	ReadCount      atomic.Int64
	ReadHits       atomic.Int64
	ReadErrors     atomic.Int64
	ReadBytes      atomic.Int64
	ReadTotalNanos atomic.Int64
	FetchCount     atomic.Int64
	FetchErrors    atomic.Int64
	FetchBytes     atomic.Int64
	WriteCount     atomic.Int64
	WriteErrors    atomic.Int64
	WriteBytes     atomic.Int64
	EvictionCount  atomic.Int64
	EvictionBytes  atomic.Int64
	PrefetchCount  atomic.Int64
	PrefetchErrors atomic.Int64
	PrefetchBytes  atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, hit bool, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ReadBytes.Add(int64(bytes))
	if hit {
		b.ReadHits.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(bytes int, _ time.Duration, err error) {
	b.FetchCount.Add(1)
	if err != nil {
		b.FetchErrors.Add(1)
		return
	}
	b.FetchBytes.Add(int64(bytes))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(int64(bytes))
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(bytes int64) {
	b.EvictionCount.Add(1)
	b.EvictionBytes.Add(bytes)
}

// RecordPrefetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrefetch(bytes int64, _ time.Duration, err error) {
	b.PrefetchCount.Add(1)
	if err != nil {
		b.PrefetchErrors.Add(1)
		return
	}
	b.PrefetchBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:      b.ReadCount.Load(),
		ReadHits:       b.ReadHits.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		ReadBytes:      b.ReadBytes.Load(),
		ReadAvgNanos:   b.getAvgReadNanos(),
		FetchCount:     b.FetchCount.Load(),
		FetchErrors:    b.FetchErrors.Load(),
		FetchBytes:     b.FetchBytes.Load(),
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		WriteBytes:     b.WriteBytes.Load(),
		EvictionCount:  b.EvictionCount.Load(),
		EvictionBytes:  b.EvictionBytes.Load(),
		PrefetchCount:  b.PrefetchCount.Load(),
		PrefetchErrors: b.PrefetchErrors.Load(),
		PrefetchBytes:  b.PrefetchBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgReadNanos() int64 {
	count := b.ReadCount.Load()
	if count == 0 {
		return 0
	}
	return b.ReadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount      int64
	ReadHits       int64
	ReadErrors     int64
	ReadBytes      int64
	ReadAvgNanos   int64
	FetchCount     int64
	FetchErrors    int64
	FetchBytes     int64
	WriteCount     int64
	WriteErrors    int64
	WriteBytes     int64
	EvictionCount  int64
	EvictionBytes  int64
	PrefetchCount  int64
	PrefetchErrors int64
	PrefetchBytes  int64
}
