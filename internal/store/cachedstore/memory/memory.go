// Package memory implements an in-process host read cache backend.
package memory

import (
	"sync/atomic"

	"github.com/discochess/tiercache/internal/stats"
	"github.com/discochess/tiercache/internal/store/cachedstore"
	"github.com/discochess/tiercache/internal/store/cachedstore/cachestrategy"
)

var _ cachedstore.Backend = (*Backend)(nil)

// Backend is a thread-safe in-process read cache. The strategy must be
// safe for concurrent use.
type Backend struct {
	strategy  cachestrategy.Strategy
	collector stats.Collector

	hits       atomic.Int64
	absentHits atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
}

// New creates a backend with the given eviction strategy.
// The collector is optional; if nil, a no-op collector is used.
func New(strategy cachestrategy.Strategy, collector stats.Collector) *Backend {
	if collector == nil {
		collector = stats.NewNoop()
	}
	return &Backend{
		strategy:  strategy,
		collector: collector,
	}
}

// Get returns the cached lookup for key.
func (b *Backend) Get(key string) (cachestrategy.Item, bool) {
	it, ok := b.strategy.Get(key)
	if !ok {
		b.misses.Add(1)
		b.collector.IncCounter(stats.MetricHostCacheMisses, stats.LevelNone, 1)
		return cachestrategy.Item{}, false
	}
	b.hits.Add(1)
	if it.Absent {
		b.absentHits.Add(1)
	}
	b.collector.IncCounter(stats.MetricHostCacheHits, stats.LevelNone, 1)
	return it, true
}

// Set caches a lookup, evicting per the strategy when full.
func (b *Backend) Set(key string, it cachestrategy.Item) {
	if b.strategy.Add(key, it) {
		b.evictions.Add(1)
		b.collector.IncCounter(stats.MetricHostCacheEvictions, stats.LevelNone, 1)
	}
	b.collector.SetGauge(stats.MetricHostCacheSize, stats.LevelNone, int64(b.strategy.Len()))
}

// Remove forgets key.
func (b *Backend) Remove(key string) {
	if b.strategy.Remove(key) {
		b.collector.SetGauge(stats.MetricHostCacheSize, stats.LevelNone, int64(b.strategy.Len()))
	}
}

// Stats returns current cache statistics.
func (b *Backend) Stats() cachedstore.Stats {
	return cachedstore.Stats{
		Hits:       b.hits.Load(),
		AbsentHits: b.absentHits.Load(),
		Misses:     b.misses.Load(),
		Evictions:  b.evictions.Load(),
		Size:       b.strategy.Len(),
	}
}
