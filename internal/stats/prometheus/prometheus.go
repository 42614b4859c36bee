// Package prometheus exports cache metrics as Prometheus vectors.
package prometheus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/tiercache/internal/stats"
)

// Label names attached to exported vectors.
const (
	LevelLabel     = "level"
	OperationLabel = "operation"
)

// DefaultBuckets spans operation durations from 1µs to about 4s.
var DefaultBuckets = prometheus.ExponentialBuckets(0.000001, 4, 12)

var help = map[string]string{
	stats.MetricHits:               "Lookups answered by a cache level.",
	stats.MetricMisses:             "Lookups a cache level could not answer.",
	stats.MetricWrites:             "Entries written to a cache level.",
	stats.MetricEvictions:          "Entries evicted by the eviction policy.",
	stats.MetricExpirations:        "Entries removed after their TTL elapsed.",
	stats.MetricRejections:         "Writes rejected because the entry can never fit.",
	stats.MetricPromotions:         "Entries copied into a faster level on a hit.",
	stats.MetricErrors:             "Failures recorded as error events.",
	stats.MetricSizeBytes:          "Estimated bytes held by a cache level.",
	stats.MetricEntries:            "Entries held by a cache level.",
	stats.MetricOpDuration:         "Duration of cache operations in seconds.",
	stats.MetricSweeps:             "Completed expiry sweeps.",
	stats.MetricSweepsSkipped:      "Sweeps skipped because one was already running.",
	stats.MetricHostCacheHits:      "Host reads answered by the read cache.",
	stats.MetricHostCacheMisses:    "Host reads that reached the host store.",
	stats.MetricHostCacheEvictions: "Items dropped from the host read cache.",
	stats.MetricHostCacheSize:      "Items held by the host read cache.",
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector implements stats.Collector using Prometheus metric vectors.
// Counters and gauges carry a "level" label, histograms an "operation" label.
// Vectors are created and registered on first use.
type Collector struct {
	registry prometheus.Registerer
	buckets  []float64

	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

var _ stats.Collector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*Collector)

// WithBuckets sets the histogram buckets, in seconds.
func WithBuckets(buckets []float64) Option {
	return func(c *Collector) {
		c.buckets = buckets
	}
}

// New creates a collector registering its vectors with registry.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer, opts ...Option) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	c := &Collector{
		registry:   registry,
		buckets:    DefaultBuckets,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name, label string, delta int64) {
	vec := lookup(&c.mu, c.counters, name, func() *prometheus.CounterVec {
		return register(c.registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: helpFor(name),
		}, []string{LevelLabel}))
	})
	vec.WithLabelValues(label).Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name, label string, value int64) {
	vec := lookup(&c.mu, c.gauges, name, func() *prometheus.GaugeVec {
		return register(c.registry, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: helpFor(name),
		}, []string{LevelLabel}))
	})
	vec.WithLabelValues(label).Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name, label string, value float64) {
	vec := lookup(&c.mu, c.histograms, name, func() *prometheus.HistogramVec {
		return register(c.registry, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpFor(name),
			Buckets: c.buckets,
		}, []string{OperationLabel}))
	})
	vec.WithLabelValues(label).Observe(value)
}

// lookup returns m[name], creating it under the write lock on first use.
func lookup[T any](mu *sync.RWMutex, m map[string]T, name string, create func() T) T {
	mu.RLock()
	v, ok := m[name]
	mu.RUnlock()
	if ok {
		return v
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok := m[name]; ok {
		return v
	}
	v = create()
	m[name] = v
	return v
}

// register registers v, reusing a vector of the same type that is already
// registered under its name. On any other failure v is returned
// unregistered so updates are still accepted.
func register[T prometheus.Collector](reg prometheus.Registerer, v T) T {
	if err := reg.Register(v); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return v
}
