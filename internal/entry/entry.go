// Package entry defines the unit of data held by every cache level.
package entry

import "time"

// Meta holds caller-supplied and access metadata for an Entry.
type Meta struct {
	// Kind is a free-form category tag used for metrics breakdown and
	// selective clearing.
	Kind string

	// AccessCount is incremented on every successful read.
	AccessCount int64

	// LastAccessedAt is the time of the most recent successful read.
	// It starts out equal to CreatedAt.
	LastAccessedAt time.Time
}

// Entry is a cached value together with its freshness and access metadata.
type Entry[V any] struct {
	Value V

	// SizeBytes is the estimated serialized size, computed at write time.
	SizeBytes int64

	CreatedAt time.Time

	// TTL is the lifetime of the entry. Zero means no expiry.
	TTL time.Duration

	Meta Meta

	// Seq is the insertion sequence number within a level.
	// Lower values were inserted earlier.
	Seq uint64
}

// New returns a fresh entry created at now with zero accesses.
func New[V any](v V, size int64, ttl time.Duration, kind string, now time.Time) *Entry[V] {
	if ttl < 0 {
		ttl = 0
	}
	return &Entry[V]{
		Value:     v,
		SizeBytes: size,
		CreatedAt: now,
		TTL:       ttl,
		Meta: Meta{
			Kind:           kind,
			LastAccessedAt: now,
		},
	}
}

// ExpiresAt returns the expiry deadline, or the zero time if the entry
// never expires.
func (e *Entry[V]) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is logically absent at now.
func (e *Entry[V]) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Touch records a successful read at now.
func (e *Entry[V]) Touch(now time.Time) {
	e.Meta.AccessCount++
	e.Meta.LastAccessedAt = now
}

// Clone returns a shallow copy of the entry. The value itself is not
// deep-copied.
func (e *Entry[V]) Clone() *Entry[V] {
	c := *e
	return &c
}
