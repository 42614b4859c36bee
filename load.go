package tiercache

import (
	"context"
	"fmt"
)

// Loader produces the value for a key on a cache miss.
type Loader[V any] func(ctx context.Context, key string) (V, error)

// GetOrLoad returns the cached value for key, or calls load and caches its
// result with opts. Concurrent calls for the same key share one load; the
// context of the first caller is passed to load. Loader errors are
// returned and nothing is cached; cache failures are not returned.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load Loader[V], opts ...SetOption) (V, error) {
	var zero V
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	if c.isClosed() {
		return zero, ErrClosed
	}

	res, err, _ := c.loads.Do(key, func() (any, error) {
		v, err := load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v, opts...)
		return v, nil
	})
	if err != nil {
		return zero, fmt.Errorf("tiercache: load %q: %w", key, err)
	}
	v, _ := res.(V)
	return v, nil
}

func (c *Cache[V]) isClosed() bool {
	c.life.RLock()
	defer c.life.RUnlock()
	return c.closed
}
