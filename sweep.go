package tiercache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/tiercache/internal/entry"
	"github.com/discochess/tiercache/internal/eviction"
	"github.com/discochess/tiercache/internal/metrics"
)

// sweeper runs a function on a fixed period until stopped.
type sweeper struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *sweeper) start(interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// stop cancels the loop and waits for an in-flight run to return.
func (s *sweeper) stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

// Sweep runs one cleanup pass over every level: expired entries are
// removed first, then entries are evicted while a level is still over
// capacity. A call made while another pass is in flight returns at once.
func (c *Cache[V]) Sweep(ctx context.Context) {
	if !c.enter() {
		return
	}
	defer c.exit()

	if !c.sweeping.CompareAndSwap(false, true) {
		c.rec.SweepSkipped()
		return
	}
	defer c.sweeping.Store(false)

	start := time.Now()
	now := c.clock.Now()
	expired, evicted := 0, 0
	for _, l := range c.levels {
		if ctx.Err() != nil {
			return
		}
		expired += c.sweepExpired(ctx, l, now)
		evicted += c.enforce(ctx, l)
		c.flush(ctx, l, "", metrics.OpSweep)
		c.exportUsage(l)
	}
	c.rec.Swept(time.Since(start))

	c.logger.Debug("sweep finished",
		zap.Int("expired", expired),
		zap.Int("evicted", evicted),
		zap.Duration("took", time.Since(start)),
	)
}

// sweepExpired removes every entry of l that has expired at now.
func (c *Cache[V]) sweepExpired(ctx context.Context, l Level, now time.Time) int {
	st := c.stores[l]

	var keys []string
	if err := st.ForEach(ctx, func(k string, e *entry.Entry[V]) bool {
		if e.Expired(now) {
			keys = append(keys, k)
		}
		return true
	}); err != nil {
		c.rec.Error(metrics.OpSweep, l, "", err)
		return 0
	}

	n := 0
	for _, k := range keys {
		unlock := c.keys.Lock(k)
		removed, err := st.RemoveFunc(ctx, k, func(e *entry.Entry[V]) bool {
			return e.Expired(now)
		})
		unlock()
		if err != nil {
			c.rec.Error(metrics.OpSweep, l, k, err)
		}
		if removed {
			n++
		}
	}
	c.rec.Expired(l, n)
	return n
}

// enforce evicts entries from l until it fits its limits.
func (c *Cache[V]) enforce(ctx context.Context, l Level) int {
	st := c.stores[l]
	limits := c.limits[l]

	mu := c.evictMu[l]
	mu.Lock()
	defer mu.Unlock()

	current := eviction.Usage{SizeBytes: st.SizeBytes(), Entries: st.Len()}
	if limits.Fits(current.SizeBytes, current.Entries) {
		return 0
	}

	var cands []eviction.Candidate
	if err := st.ForEach(ctx, func(k string, e *entry.Entry[V]) bool {
		cands = append(cands, candidate(k, e))
		return true
	}); err != nil {
		c.rec.Error(metrics.OpSweep, l, "", err)
		return 0
	}

	victims := eviction.Plan(c.policy, limits, cands, current, eviction.Usage{})
	c.evict(ctx, l, victims, metrics.OpSweep, true)
	return len(victims)
}
