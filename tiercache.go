// Package tiercache provides a multi-level cache that sits between
// application code and key/value stores of different speed and durability.
//
// Levels are ordered fastest first: an in-process memory level and an
// optional session level persisted through a text key/value host store.
// Reads fall through the levels and promote hits into faster levels;
// writes fan out to every selected level. Each level enforces TTL expiry
// at read time, capacity bounds with LRU eviction, and a periodic sweep.
// Failures local to one level never reach the caller; they are recorded
// as error events in Metrics.
//
// Example usage:
//
//	host, err := diskstore.New(dir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c, err := tiercache.New[Product](
//	    tiercache.WithSessionStore(host),
//	    tiercache.WithDefaultTTL(10*time.Minute),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.Set(ctx, "sku-1", p, tiercache.WithKind("product"))
//	if p, ok := c.Get(ctx, "sku-1"); ok {
//	    fmt.Println(p.Title)
//	}
package tiercache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/entry"
	"github.com/discochess/tiercache/internal/eviction"
	"github.com/discochess/tiercache/internal/keylock"
	"github.com/discochess/tiercache/internal/level"
	"github.com/discochess/tiercache/internal/level/memlevel"
	"github.com/discochess/tiercache/internal/level/sessionlevel"
	"github.com/discochess/tiercache/internal/metrics"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("tiercache: cache closed")

	// ErrNoSessionStore indicates the session level was requested without
	// a host store.
	ErrNoSessionStore = errors.New("tiercache: session level requires a session store")

	// ErrInvalidOption indicates a construction option is out of range.
	ErrInvalidOption = errors.New("tiercache: invalid option")

	// ErrCapacityRejected indicates an entry is larger than a level's size
	// bound. It appears in error events, never as a return value.
	ErrCapacityRejected = level.ErrCapacityRejected

	// ErrSerialization indicates a value could not be encoded or decoded
	// for the session level.
	ErrSerialization = level.ErrSerialization

	// ErrHostStorage indicates the session host store failed.
	ErrHostStorage = level.ErrHostStorage
)

// warmupConcurrency bounds parallel warmup writes.
const warmupConcurrency = 8

// Cache is a multi-level cache for values of type V.
// A Cache is safe for concurrent use by multiple goroutines.
type Cache[V any] struct {
	levels  []Level
	stores  map[Level]level.Store[V]
	limits  map[Level]eviction.Limits
	evictMu map[Level]*sync.Mutex

	ttl     time.Duration
	policy  eviction.Policy
	values  ValueCodec
	sizer   func(string, V) int64
	keys    *keylock.Locks
	rec     *metrics.Recorder
	loads   singleflight.Group
	clock   clock.Clock
	logger  *zap.Logger

	sweeper  sweeper
	sweeping atomic.Bool

	// life guards closed: operations hold it shared, Close exclusively.
	life   sync.RWMutex
	closed bool
}

// New creates a Cache with the given options.
// If no options are provided, a memory-only cache with the documented
// defaults is returned.
func New[V any](opts ...Option) (*Cache[V], error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var warmup map[string]V
	if cfg.warmup != nil {
		data, ok := cfg.warmup.(map[string]V)
		if !ok {
			return nil, fmt.Errorf("%w: warmup data is %T, want map[string]%T", ErrInvalidOption, cfg.warmup, *new(V))
		}
		warmup = data
	}

	c := &Cache[V]{
		levels:  cfg.levels,
		stores:  make(map[Level]level.Store[V], len(cfg.levels)),
		limits:  make(map[Level]eviction.Limits, len(cfg.levels)),
		evictMu: make(map[Level]*sync.Mutex, len(cfg.levels)),
		ttl:     cfg.ttl,
		policy:  cfg.policy,
		values:  cfg.values,
		keys:    keylock.New(keylock.DefaultStripes),
		clock:   cfg.clock,
		logger:  cfg.logger.Named("tiercache"),
	}
	c.sizer = c.estimateSize
	if cfg.sizer != nil {
		fn, ok := cfg.sizer.(func(string, V) int64)
		if !ok {
			return nil, fmt.Errorf("%w: sizer is %T", ErrInvalidOption, cfg.sizer)
		}
		c.sizer = fn
	}
	c.rec = metrics.NewRecorder(
		metrics.WithCollector(cfg.stats),
		metrics.WithLogger(c.logger),
		metrics.WithClock(cfg.clock),
		metrics.WithMaxErrorEvents(cfg.maxErrorEvents),
	)

	ctx := context.Background()
	for _, l := range c.levels {
		st, err := c.openLevel(ctx, l, &cfg)
		if err != nil {
			c.closeStores()
			return nil, fmt.Errorf("opening %v level: %w", l, err)
		}
		c.stores[l] = st
		c.limits[l] = cfg.limitsFor(l)
		c.evictMu[l] = &sync.Mutex{}
		c.rec.Usage(l, metrics.Usage{SizeBytes: st.SizeBytes(), Entries: st.Len()})
	}

	if len(warmup) > 0 {
		c.warm(ctx, warmup)
	}

	c.sweeper.start(cfg.cleanupInterval, c.Sweep)

	c.logger.Debug("cache initialized",
		zap.Stringers("levels", c.levels),
		zap.Duration("ttl", c.ttl),
		zap.Duration("cleanupInterval", cfg.cleanupInterval),
		zap.String("policy", c.policy.Name()),
		zap.Int("warmup", len(warmup)),
	)
	return c, nil
}

func (c *Cache[V]) openLevel(ctx context.Context, l Level, cfg *options) (level.Store[V], error) {
	switch l {
	case level.Memory:
		return memlevel.New[V](cfg.clock), nil
	case level.Session:
		return sessionlevel.Open[V](ctx, cfg.session,
			sessionlevel.WithNamespace(cfg.namespace),
			sessionlevel.WithValueCodec(cfg.values),
			sessionlevel.WithCodec(cfg.codec),
			sessionlevel.WithClock(cfg.clock),
			sessionlevel.WithLogger(c.logger.Named("session")),
		)
	default:
		return nil, fmt.Errorf("%w: unknown %v", ErrInvalidOption, l)
	}
}

// warm seeds data through the write path without touching metrics.
func (c *Cache[V]) warm(ctx context.Context, data map[string]V) {
	var g errgroup.Group
	g.SetLimit(warmupConcurrency)
	for k, v := range data {
		g.Go(func() error {
			c.set(ctx, k, v, setOptions{ttl: c.ttl}, metrics.OpWarmup, false)
			return nil
		})
	}
	g.Wait()
}

// enter reports whether the cache is open and, if so, holds it open until
// exit is called.
func (c *Cache[V]) enter() bool {
	c.life.RLock()
	if c.closed {
		c.life.RUnlock()
		return false
	}
	return true
}

func (c *Cache[V]) exit() {
	c.life.RUnlock()
}

// Levels returns the configured levels, fastest first.
func (c *Cache[V]) Levels() []Level {
	return slices.Clone(c.levels)
}

// Get returns the value stored under key, querying levels fastest first.
// A hit on a slower level is promoted into every faster level.
// Expired entries are removed and reported as misses.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if !c.enter() {
		return zero, false
	}
	defer c.exit()

	start := time.Now()
	defer func() { c.rec.Observe(metrics.OpGet, time.Since(start)) }()

	unlock := c.keys.Lock(key)
	defer unlock()
	return c.lookup(ctx, key, c.levels, true)
}

// GetFrom returns the value stored under key in level l only.
// Nothing is promoted. An unconfigured level always misses.
func (c *Cache[V]) GetFrom(ctx context.Context, key string, l Level) (V, bool) {
	var zero V
	if !c.enter() {
		return zero, false
	}
	defer c.exit()
	if _, ok := c.stores[l]; !ok {
		return zero, false
	}

	start := time.Now()
	defer func() { c.rec.Observe(metrics.OpGet, time.Since(start)) }()

	unlock := c.keys.Lock(key)
	defer unlock()
	return c.lookup(ctx, key, []Level{l}, false)
}

// lookup reads key from levels in order. The caller holds the key lock.
func (c *Cache[V]) lookup(ctx context.Context, key string, levels []Level, promote bool) (V, bool) {
	now := c.clock.Now()
	for i, l := range levels {
		st := c.stores[l]
		e, ok, err := st.Get(ctx, key)
		if err != nil {
			c.rec.Error(metrics.OpGet, l, key, err)
			c.rec.LevelMiss(l)
			continue
		}
		if !ok {
			c.rec.LevelMiss(l)
			continue
		}
		if e.Expired(now) {
			c.expire(ctx, l, key, now)
			c.rec.LevelMiss(l)
			continue
		}

		c.rec.LevelHit(l)
		c.rec.Hit(e.Meta.Kind)
		if promote {
			for _, faster := range levels[:i] {
				c.promote(ctx, faster, key, e)
			}
		}
		return e.Value, true
	}

	c.rec.Miss()
	var zero V
	return zero, false
}

// expire removes key from l if it is still expired at now.
func (c *Cache[V]) expire(ctx context.Context, l Level, key string, now time.Time) bool {
	removed, err := c.stores[l].RemoveFunc(ctx, key, func(e *entry.Entry[V]) bool {
		return e.Expired(now)
	})
	if err != nil {
		c.rec.Error(metrics.OpGet, l, key, err)
	}
	if removed {
		c.rec.Expired(l, 1)
		c.exportUsage(l)
		c.flush(ctx, l, key, metrics.OpGet)
	}
	return removed
}

// promote copies a hit into a faster level, keeping its freshness.
func (c *Cache[V]) promote(ctx context.Context, l Level, key string, hit *entry.Entry[V]) {
	e := hit.Clone()
	if err := c.put(ctx, l, key, e, c.limits[l], metrics.OpPromote, true); err != nil {
		return
	}
	c.rec.Promoted(l)
}

// Set stores v under key in every selected level. A level that rejects or
// fails the write is skipped and recorded as an error event; the other
// levels are still written.
func (c *Cache[V]) Set(ctx context.Context, key string, v V, opts ...SetOption) {
	if !c.enter() {
		return
	}
	defer c.exit()

	so := setOptions{ttl: c.ttl}
	for _, opt := range opts {
		opt.applySet(&so)
	}

	start := time.Now()
	defer func() { c.rec.Observe(metrics.OpSet, time.Since(start)) }()

	c.set(ctx, key, v, so, metrics.OpSet, true)
}

// set writes a fresh entry into each target level under the key lock.
func (c *Cache[V]) set(ctx context.Context, key string, v V, so setOptions, op string, record bool) {
	size := c.sizer(key, v)
	now := c.clock.Now()

	unlock := c.keys.Lock(key)
	defer unlock()

	wrote := false
	for _, l := range c.targets(so.levels) {
		e := entry.New(v, size, so.ttl, so.kind, now)
		if err := c.put(ctx, l, key, e, c.limits[l].Tighten(so.limits), op, record); err == nil {
			wrote = true
		}
	}
	if wrote && record {
		c.rec.KindWrite(so.kind)
	}
}

// targets returns the configured levels among want, fastest first.
// An empty want selects every configured level.
func (c *Cache[V]) targets(want []Level) []Level {
	if len(want) == 0 {
		return c.levels
	}
	out := make([]Level, 0, len(want))
	for _, l := range c.levels {
		if slices.Contains(want, l) {
			out = append(out, l)
		}
	}
	return out
}

// put admits e into level l, evicting as needed to stay within limits.
// When record is false only error events are recorded.
func (c *Cache[V]) put(ctx context.Context, l Level, key string, e *entry.Entry[V], limits eviction.Limits, op string, record bool) error {
	if err := eviction.Admit(limits, e.SizeBytes); err != nil {
		if record {
			c.rec.Rejected(l)
		}
		c.rec.Error(op, l, key, err)
		return err
	}

	mu := c.evictMu[l]
	mu.Lock()
	defer mu.Unlock()

	c.makeRoom(ctx, l, key, e.SizeBytes, limits, record)
	defer c.flush(ctx, l, key, op)

	if err := c.stores[l].Put(ctx, key, e); err != nil {
		c.rec.Error(op, l, key, err)
		return err
	}
	if record {
		c.rec.Write(l)
	}
	c.exportUsage(l)
	return nil
}

// makeRoom evicts entries from l so that writing size bytes under key
// fits limits. The caller holds the level's eviction lock.
func (c *Cache[V]) makeRoom(ctx context.Context, l Level, key string, size int64, limits eviction.Limits, record bool) {
	st := c.stores[l]
	current := eviction.Usage{SizeBytes: st.SizeBytes(), Entries: st.Len()}
	incoming := eviction.Usage{SizeBytes: size, Entries: 1}
	if limits.Fits(current.SizeBytes+incoming.SizeBytes, current.Entries+incoming.Entries) {
		return
	}

	var cands []eviction.Candidate
	err := st.ForEach(ctx, func(k string, e *entry.Entry[V]) bool {
		if k == key {
			// The write replaces this entry.
			current.SizeBytes -= e.SizeBytes
			current.Entries--
			return true
		}
		cands = append(cands, candidate(k, e))
		return true
	})
	if err != nil {
		c.rec.Error(metrics.OpSet, l, key, err)
		return
	}

	c.evict(ctx, l, eviction.Plan(c.policy, limits, cands, current, incoming), metrics.OpSet, record)
}

// evict removes victims from l and counts the evictions.
func (c *Cache[V]) evict(ctx context.Context, l Level, victims []eviction.Candidate, op string, record bool) {
	n := 0
	for _, v := range victims {
		removed, err := c.stores[l].Remove(ctx, v.Key)
		if err != nil {
			c.rec.Error(op, l, v.Key, err)
		}
		if removed {
			n++
		}
	}
	if n > 0 {
		c.logger.Debug("evicted entries",
			zap.Stringer("level", l),
			zap.Int("count", n),
			zap.String("policy", c.policy.Name()),
		)
	}
	if record {
		c.rec.Evicted(l, n)
	}
}

func candidate[V any](key string, e *entry.Entry[V]) eviction.Candidate {
	return eviction.Candidate{
		Key:            key,
		LastAccessedAt: e.Meta.LastAccessedAt,
		AccessCount:    e.Meta.AccessCount,
		Seq:            e.Seq,
		SizeBytes:      e.SizeBytes,
	}
}

// Delete removes key from every level and reports whether any level held it.
func (c *Cache[V]) Delete(ctx context.Context, key string) bool {
	if !c.enter() {
		return false
	}
	defer c.exit()
	return c.delete(ctx, key, c.levels)
}

// DeleteFrom removes key from level l only and reports whether it was there.
func (c *Cache[V]) DeleteFrom(ctx context.Context, key string, l Level) bool {
	if !c.enter() {
		return false
	}
	defer c.exit()
	if _, ok := c.stores[l]; !ok {
		return false
	}
	return c.delete(ctx, key, []Level{l})
}

func (c *Cache[V]) delete(ctx context.Context, key string, levels []Level) bool {
	start := time.Now()
	defer func() { c.rec.Observe(metrics.OpDelete, time.Since(start)) }()

	unlock := c.keys.Lock(key)
	defer unlock()

	found := false
	for _, l := range levels {
		removed, err := c.stores[l].Remove(ctx, key)
		if err != nil {
			c.rec.Error(metrics.OpDelete, l, key, err)
		}
		if removed {
			found = true
			c.exportUsage(l)
			c.flush(ctx, l, key, metrics.OpDelete)
		}
	}
	return found
}

// Clear empties every level. Cumulative counters are kept.
func (c *Cache[V]) Clear(ctx context.Context) {
	if !c.enter() {
		return
	}
	defer c.exit()
	for _, l := range c.levels {
		c.clearLevel(ctx, l)
	}
}

// ClearLevel empties level l. Cumulative counters are kept.
func (c *Cache[V]) ClearLevel(ctx context.Context, l Level) {
	if !c.enter() {
		return
	}
	defer c.exit()
	if _, ok := c.stores[l]; !ok {
		return
	}
	c.clearLevel(ctx, l)
}

func (c *Cache[V]) clearLevel(ctx context.Context, l Level) {
	mu := c.evictMu[l]
	mu.Lock()
	defer mu.Unlock()

	if err := c.stores[l].Clear(ctx); err != nil {
		c.rec.Error(metrics.OpClear, l, "", err)
	}
	c.exportUsage(l)
}

// ClearKind removes every entry tagged kind from every level and returns
// the number of entries removed.
func (c *Cache[V]) ClearKind(ctx context.Context, kind string) int {
	if !c.enter() {
		return 0
	}
	defer c.exit()

	isKind := func(e *entry.Entry[V]) bool { return e.Meta.Kind == kind }

	total := 0
	for _, l := range c.levels {
		st := c.stores[l]
		var keys []string
		if err := st.ForEach(ctx, func(k string, e *entry.Entry[V]) bool {
			if isKind(e) {
				keys = append(keys, k)
			}
			return true
		}); err != nil {
			c.rec.Error(metrics.OpClear, l, "", err)
			continue
		}

		for _, k := range keys {
			unlock := c.keys.Lock(k)
			removed, err := st.RemoveFunc(ctx, k, isKind)
			unlock()
			if err != nil {
				c.rec.Error(metrics.OpClear, l, k, err)
			}
			if removed {
				total++
			}
		}
		c.flush(ctx, l, "", metrics.OpClear)
		c.exportUsage(l)
	}
	return total
}

// Metrics returns a snapshot of the cache metrics. It does not change any
// cache state.
func (c *Cache[V]) Metrics() Metrics {
	usage := make(map[Level]metrics.Usage, len(c.levels))
	for _, l := range c.levels {
		st := c.stores[l]
		usage[l] = metrics.Usage{SizeBytes: st.SizeBytes(), Entries: st.Len()}
	}
	return c.rec.Snapshot(usage)
}

// Close stops the background sweep and releases the level stores.
// Operations after Close are no-ops returning zero values.
// Calling Close more than once returns ErrClosed.
func (c *Cache[V]) Close() error {
	c.life.Lock()
	if c.closed {
		c.life.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.life.Unlock()

	c.sweeper.stop()

	if err := c.closeStores(); err != nil {
		c.rec.EngineError(metrics.OpClose, "", err)
		return fmt.Errorf("closing level stores: %w", err)
	}
	c.logger.Debug("cache closed")
	return nil
}

func (c *Cache[V]) closeStores() error {
	var errs []error
	for _, l := range c.levels {
		st, ok := c.stores[l]
		if !ok {
			continue
		}
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", l, err))
		}
	}
	return errors.Join(errs...)
}

// flush writes the deferred bookkeeping of l, if its store defers any.
func (c *Cache[V]) flush(ctx context.Context, l Level, key, op string) {
	f, ok := c.stores[l].(level.Flusher)
	if !ok {
		return
	}
	if err := f.Flush(ctx); err != nil {
		c.rec.Error(op, l, key, err)
	}
}

// exportUsage publishes the occupancy of l to the stats collector.
func (c *Cache[V]) exportUsage(l Level) {
	st := c.stores[l]
	c.rec.Usage(l, metrics.Usage{SizeBytes: st.SizeBytes(), Entries: st.Len()})
}

// estimateSize is the default sizer: key length plus encoded value length.
// Values the codec cannot encode count as their key only.
func (c *Cache[V]) estimateSize(key string, v V) int64 {
	data, err := c.values.Marshal(v)
	if err != nil {
		return int64(len(key))
	}
	return int64(len(key) + len(data))
}
