// Package lru is a least-recently-used strategy for host read caches.
package lru

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/tiercache/internal/store/cachedstore/cachestrategy"
)

var _ cachestrategy.Strategy = (*Strategy)(nil)

// Strategy keeps at most a fixed number of items, dropping the least
// recently read one first.
type Strategy struct {
	cache *lru.Cache[string, cachestrategy.Item]
}

// New creates a strategy holding up to capacity items.
func New(capacity int) (*Strategy, error) {
	c, err := lru.New[string, cachestrategy.Item](capacity)
	if err != nil {
		return nil, fmt.Errorf("lru capacity %d: %w", capacity, err)
	}
	return &Strategy{cache: c}, nil
}

func (s *Strategy) Get(key string) (cachestrategy.Item, bool) {
	return s.cache.Get(key)
}

func (s *Strategy) Add(key string, it cachestrategy.Item) bool {
	return s.cache.Add(key, it)
}

func (s *Strategy) Remove(key string) bool {
	return s.cache.Remove(key)
}

func (s *Strategy) Len() int {
	return s.cache.Len()
}
