// Package memstore provides an in-memory host store, mainly for tests and
// for sessions that only need to survive cache re-creation inside one
// process.
package memstore

import (
	"context"
	"sync"

	"github.com/discochess/tiercache/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is an in-memory store.
type Store struct {
	mu       sync.RWMutex
	items    map[string]string
	maxItems int
	failing  error
}

// Option configures a Store.
type Option func(*Store)

// WithMaxItems limits the number of items the store accepts. Writes of new
// keys beyond the limit fail with store.ErrQuotaExceeded.
func WithMaxItems(n int) Option {
	return func(s *Store) { s.maxItems = n }
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetItem reads an item from memory.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failing != nil {
		return "", s.failing
	}
	v, ok := s.items[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

// SetItem writes an item to memory.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing != nil {
		return s.failing
	}
	if _, exists := s.items[key]; !exists && s.maxItems > 0 && len(s.items) >= s.maxItems {
		return store.ErrQuotaExceeded
	}
	s.items[key] = value
	return nil
}

// RemoveItem deletes an item from memory.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing != nil {
		return s.failing
	}
	delete(s.items, key)
	return nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Keys returns the stored keys (for test inspection).
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}

// FailWith makes every subsequent call return err until called with nil.
// Used to simulate host outages in tests.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.failing = err
	s.mu.Unlock()
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}
