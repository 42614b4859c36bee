// Package stats provides a unified interface for exporting cache metrics.
package stats

// Metric names used throughout the library.
const (
	// Engine metrics, labelled by level.
	MetricHits        = "tiercache_hits_total"
	MetricMisses      = "tiercache_misses_total"
	MetricWrites      = "tiercache_writes_total"
	MetricEvictions   = "tiercache_evictions_total"
	MetricExpirations = "tiercache_expirations_total"
	MetricRejections  = "tiercache_rejections_total"
	MetricPromotions  = "tiercache_promotions_total"
	MetricErrors      = "tiercache_errors_total"
	MetricSizeBytes   = "tiercache_size_bytes"
	MetricEntries     = "tiercache_entries"

	// Operation durations in seconds, labelled by operation.
	MetricOpDuration = "tiercache_operation_duration_seconds"

	// Sweep metrics.
	MetricSweeps        = "tiercache_sweeps_total"
	MetricSweepsSkipped = "tiercache_sweeps_skipped_total"

	// Host read-cache metrics.
	MetricHostCacheHits      = "tiercache_host_cache_hits_total"
	MetricHostCacheMisses    = "tiercache_host_cache_misses_total"
	MetricHostCacheEvictions = "tiercache_host_cache_evictions_total"
	MetricHostCacheSize      = "tiercache_host_cache_size"
)

// LevelNone is the label value for metrics not tied to a cache level.
const LevelNone = "none"

// Collector defines the interface for exporting metrics.
// The label argument is a level name for level metrics and an
// operation name for MetricOpDuration.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name, label string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name, label string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name, label string, value float64)
}
