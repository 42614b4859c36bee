// Package keylock serializes operations on a key with a fixed set of
// striped mutexes. Keys are assigned to stripes by FNV-1a hash, so two
// distinct keys may share a stripe but one key always maps to the same one.
package keylock

import "sync"

// DefaultStripes is the stripe count used when New is given n <= 0.
const DefaultStripes = 256

// Locks is a striped mutex set keyed by string.
type Locks struct {
	stripes []sync.Mutex
}

// New creates a lock set with n stripes.
func New(n int) *Locks {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Locks{stripes: make([]sync.Mutex, n)}
}

// Stripe returns the stripe index for key, in [0, Len()).
func (l *Locks) Stripe(key string) int {
	return int(fnv1a32(key) % uint32(len(l.stripes)))
}

// Len returns the number of stripes.
func (l *Locks) Len() int {
	return len(l.stripes)
}

// Lock acquires the stripe for key and returns its unlock function.
func (l *Locks) Lock(key string) (unlock func()) {
	mu := &l.stripes[l.Stripe(key)]
	mu.Lock()
	return mu.Unlock
}

// fnv1a32 computes the FNV-1a 32-bit hash of a string.
func fnv1a32(s string) uint32 {
	var h uint32 = 2166136261 // FNV offset basis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619 // FNV prime
	}
	return h
}
