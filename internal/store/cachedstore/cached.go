package cachedstore

import (
	"context"
	"errors"

	"github.com/discochess/tiercache/internal/store"
	"github.com/discochess/tiercache/internal/store/cachedstore/cachestrategy"
)

var _ store.Store = (*Store)(nil)

// Store wraps another Store with an in-process read cache.
// Writes go to the underlying store first and only then update the cache,
// so a failed write never leaves a value visible that the host rejected.
type Store struct {
	underlying store.Store
	backend    Backend
	negative   bool
}

// Option configures a Store.
type Option func(*Store)

// WithNegativeCaching makes the store remember keys the host reported as
// missing, answering repeated lookups with store.ErrNotFound locally.
// Only safe when this process is the sole writer of the host keys.
func WithNegativeCaching(enabled bool) Option {
	return func(s *Store) {
		s.negative = enabled
	}
}

// New creates a cached store wrapping underlying.
func New(underlying store.Store, backend Backend, opts ...Option) *Store {
	s := &Store{
		underlying: underlying,
		backend:    backend,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetItem reads an item, checking the cache first.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	if it, ok := s.backend.Get(key); ok {
		if it.Absent {
			return "", store.ErrNotFound
		}
		return it.Value, nil
	}

	v, err := s.underlying.GetItem(ctx, key)
	if err != nil {
		if s.negative && errors.Is(err, store.ErrNotFound) {
			s.backend.Set(key, cachestrategy.Item{Absent: true})
		}
		return "", err
	}

	s.backend.Set(key, cachestrategy.Item{Value: v})
	return v, nil
}

// SetItem writes through to the underlying store.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := s.underlying.SetItem(ctx, key, value); err != nil {
		s.backend.Remove(key)
		return err
	}
	s.backend.Set(key, cachestrategy.Item{Value: value})
	return nil
}

// RemoveItem removes the item from the underlying store and the cache.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.underlying.RemoveItem(ctx, key); err != nil {
		s.backend.Remove(key)
		return err
	}
	if s.negative {
		s.backend.Set(key, cachestrategy.Item{Absent: true})
	} else {
		s.backend.Remove(key)
	}
	return nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.underlying.Close()
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}
