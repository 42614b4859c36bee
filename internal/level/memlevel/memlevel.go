// Package memlevel implements the volatile in-process cache level.
package memlevel

import (
	"context"
	"sync"

	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/entry"
	"github.com/discochess/tiercache/internal/level"
)

// Store is a map-backed level.Store. Its contents are lost when the
// process exits.
type Store[V any] struct {
	clock clock.Clock

	mu    sync.RWMutex
	items map[string]*entry.Entry[V]
	size  int64
	seq   uint64
}

// New creates an empty volatile store. A nil clock uses wall time.
func New[V any](c clock.Clock) *Store[V] {
	if c == nil {
		c = clock.Real()
	}
	return &Store[V]{
		clock: c,
		items: make(map[string]*entry.Entry[V]),
	}
}

// Level returns level.Memory.
func (s *Store[V]) Level() level.Level { return level.Memory }

// Get returns a copy of the entry after recording the access.
func (s *Store[V]) Get(ctx context.Context, key string) (*entry.Entry[V], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	e.Touch(s.clock.Now())
	return e.Clone(), true, nil
}

// Put stores e, replacing any existing entry for key.
func (s *Store[V]) Put(ctx context.Context, key string, e *entry.Entry[V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[key]; ok {
		s.size -= old.SizeBytes
	}
	s.seq++
	e.Seq = s.seq
	s.items[key] = e
	s.size += e.SizeBytes
	return nil
}

// Remove deletes key and reports whether it was present.
func (s *Store[V]) Remove(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return false, nil
	}
	delete(s.items, key)
	s.size -= e.SizeBytes
	return true, nil
}

// RemoveFunc deletes key if pred accepts its entry.
func (s *Store[V]) RemoveFunc(ctx context.Context, key string, pred func(e *entry.Entry[V]) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || !pred(e.Clone()) {
		return false, nil
	}
	delete(s.items, key)
	s.size -= e.SizeBytes
	return true, nil
}

// Clear drops every entry and resets size accounting.
func (s *Store[V]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*entry.Entry[V])
	s.size = 0
	return nil
}

// ForEach iterates over copies of the resident entries.
func (s *Store[V]) ForEach(ctx context.Context, fn func(key string, e *entry.Entry[V]) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k, e := range s.items {
		if !fn(k, e.Clone()) {
			break
		}
	}
	return nil
}

// SizeBytes returns the total estimated size of resident entries.
func (s *Store[V]) SizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Len returns the number of resident entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close releases the backing map.
func (s *Store[V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*entry.Entry[V])
	s.size = 0
	return nil
}

// Compile-time check that Store implements level.Store.
var _ level.Store[int] = (*Store[int])(nil)
