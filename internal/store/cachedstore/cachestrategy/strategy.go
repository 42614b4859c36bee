// Package cachestrategy defines the eviction strategies behind a host
// read cache.
package cachestrategy

// Item is a cached host lookup. Absent items record that the host had no
// value for the key.
type Item struct {
	Value  string
	Absent bool
}

// Strategy stores items and decides which to drop when full.
type Strategy interface {
	Get(key string) (Item, bool)
	// Add stores it under key and reports whether another item was evicted
	// to make room.
	Add(key string, it Item) bool
	Remove(key string) bool
	Len() int
}
