// Package cachedstore provides a read-caching wrapper for host stores
// that are slow to reach (object storage, remote KV).
package cachedstore

import "github.com/discochess/tiercache/internal/store/cachedstore/cachestrategy"

// Backend holds cached host lookups.
type Backend interface {
	// Get returns the cached lookup for key.
	Get(key string) (cachestrategy.Item, bool)

	// Set caches a lookup.
	Set(key string, it cachestrategy.Item)

	// Remove forgets key.
	Remove(key string)

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains read cache statistics.
type Stats struct {
	Hits int64
	// AbsentHits counts hits that answered "not found" without asking
	// the host. They are included in Hits.
	AbsentHits int64
	Misses     int64
	Evictions  int64
	Size       int
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
