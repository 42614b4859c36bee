package tiercache

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/codec"
	"github.com/discochess/tiercache/internal/codec/noopcodec"
	"github.com/discochess/tiercache/internal/eviction"
	"github.com/discochess/tiercache/internal/level"
	"github.com/discochess/tiercache/internal/level/sessionlevel"
	"github.com/discochess/tiercache/internal/metrics"
	"github.com/discochess/tiercache/internal/stats"
	"github.com/discochess/tiercache/internal/store"
)

// Documented defaults.
const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxSizeBytes    = 50 << 20 // 50 MiB
	DefaultMaxEntries      = 1000
	DefaultCleanupInterval = time.Minute
	DefaultNamespace       = sessionlevel.DefaultNamespace
	DefaultMaxErrorEvents  = metrics.DefaultMaxErrorEvents
)

// Option configures a Cache.
type Option interface {
	apply(*options)
}

// SetOption configures a single Set call. Unset fields fall back to the
// engine defaults.
type SetOption interface {
	applySet(*setOptions)
}

// options holds the engine configuration.
type options struct {
	ttl             time.Duration
	limits          eviction.Limits
	levelLimits     map[Level]eviction.Limits
	cleanupInterval time.Duration
	levels          []Level
	levelsSet       bool
	warmup          any
	sizer           any
	session         store.Store
	namespace       string
	values          ValueCodec
	codec           codec.Codec
	policy          eviction.Policy
	logger          *zap.Logger
	stats           stats.Collector
	clock           clock.Clock
	maxErrorEvents  int
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		ttl: DefaultTTL,
		limits: eviction.Limits{
			MaxSizeBytes: DefaultMaxSizeBytes,
			MaxEntries:   DefaultMaxEntries,
		},
		levelLimits:     make(map[Level]eviction.Limits),
		cleanupInterval: DefaultCleanupInterval,
		namespace:       DefaultNamespace,
		values:          sessionlevel.JSON(),
		codec:           noopcodec.New(),
		policy:          eviction.LRU(),
		logger:          zap.NewNop(),
		stats:           stats.NewNoop(),
		clock:           clock.Real(),
		maxErrorEvents:  DefaultMaxErrorEvents,
	}
}

// validate checks the configuration and resolves the level list.
func (o *options) validate() error {
	if o.ttl < 0 {
		return fmt.Errorf("%w: negative ttl %v", ErrInvalidOption, o.ttl)
	}
	if o.limits.MaxSizeBytes < 0 || o.limits.MaxEntries < 0 {
		return fmt.Errorf("%w: negative capacity %+v", ErrInvalidOption, o.limits)
	}
	for l, lim := range o.levelLimits {
		if !l.Valid() {
			return fmt.Errorf("%w: limits for unknown %v", ErrInvalidOption, l)
		}
		if lim.MaxSizeBytes < 0 || lim.MaxEntries < 0 {
			return fmt.Errorf("%w: negative capacity for %v", ErrInvalidOption, l)
		}
	}
	if o.cleanupInterval < 0 {
		return fmt.Errorf("%w: negative cleanup interval %v", ErrInvalidOption, o.cleanupInterval)
	}
	if o.maxErrorEvents <= 0 {
		return fmt.Errorf("%w: max error events must be positive", ErrInvalidOption)
	}
	if o.namespace == "" {
		return fmt.Errorf("%w: empty namespace", ErrInvalidOption)
	}
	if o.values == nil || o.codec == nil || o.policy == nil {
		return fmt.Errorf("%w: nil codec or policy", ErrInvalidOption)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.stats == nil {
		o.stats = stats.NewNoop()
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}

	if !o.levelsSet {
		o.levels = []Level{level.Memory}
		if o.session != nil {
			o.levels = append(o.levels, level.Session)
		}
		return nil
	}
	if len(o.levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidOption)
	}
	for _, l := range o.levels {
		if !l.Valid() {
			return fmt.Errorf("%w: unknown %v", ErrInvalidOption, l)
		}
		if l == level.Session && o.session == nil {
			return ErrNoSessionStore
		}
	}
	slices.Sort(o.levels)
	o.levels = slices.Compact(o.levels)
	return nil
}

// limitsFor returns the capacity bounds of level l.
func (o *options) limitsFor(l Level) eviction.Limits {
	if lim, ok := o.levelLimits[l]; ok {
		return lim
	}
	return o.limits
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithDefaultTTL sets the TTL used by writes that do not pass WithTTL.
// Zero means entries never expire. Default is 5 minutes.
func WithDefaultTTL(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.ttl = d
	})
}

// WithMaxSizeBytes bounds the estimated size of every level.
// Zero disables the bound. Default is 50 MiB.
func WithMaxSizeBytes(n int64) Option {
	return optionFunc(func(o *options) {
		o.limits.MaxSizeBytes = n
	})
}

// WithMaxEntries bounds the entry count of every level.
// Zero disables the bound. Default is 1000.
func WithMaxEntries(n int) Option {
	return optionFunc(func(o *options) {
		o.limits.MaxEntries = n
	})
}

// WithLevelLimits overrides the capacity bounds of one level.
func WithLevelLimits(l Level, maxSizeBytes int64, maxEntries int) Option {
	return optionFunc(func(o *options) {
		o.levelLimits[l] = eviction.Limits{MaxSizeBytes: maxSizeBytes, MaxEntries: maxEntries}
	})
}

// WithCleanupInterval sets the period of the background sweep.
// Zero disables the background sweep; Sweep can still be called directly.
// Default is 1 minute.
func WithCleanupInterval(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.cleanupInterval = d
	})
}

// WithWarmup seeds the cache with data before New returns, using the
// default TTL and levels. Warmup does not count towards hit, miss, kind,
// eviction or timing metrics. V must match the type parameter of New.
func WithWarmup[V any](data map[string]V) Option {
	return optionFunc(func(o *options) {
		o.warmup = data
	})
}

// WithSizer replaces the size estimate used for capacity accounting.
// The default estimate is the key length plus the length of the value
// encoded by the value codec. V must match the type parameter of New.
func WithSizer[V any](fn func(key string, v V) int64) Option {
	return optionFunc(func(o *options) {
		o.sizer = fn
	})
}

// WithSessionStore sets the host store backing the session level.
// The cache does not close it.
func WithSessionStore(s HostStore) Option {
	return optionFunc(func(o *options) {
		o.session = s
	})
}

// WithNamespace sets the prefix of every session key in the host store.
// Default is "tiercache".
func WithNamespace(ns string) Option {
	return optionFunc(func(o *options) {
		o.namespace = ns
	})
}

// WithValueCodec sets how values are encoded for the session level and
// for size estimates. Default is JSON.
func WithValueCodec(c ValueCodec) Option {
	return optionFunc(func(o *options) {
		o.values = c
	})
}

// WithCodec sets the compression applied to session payloads.
// Default is none.
func WithCodec(c Codec) Option {
	return optionFunc(func(o *options) {
		o.codec = c
	})
}

// WithPolicy sets the eviction policy. Default is LRU.
func WithPolicy(p Policy) Option {
	return optionFunc(func(o *options) {
		o.policy = p
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithStats sets the stats collector metrics are exported to.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithClock sets the clock used for entry timestamps and expiry.
func WithClock(c Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithMaxErrorEvents bounds the number of error events kept for Metrics.
// Default is 100.
func WithMaxErrorEvents(n int) Option {
	return optionFunc(func(o *options) {
		o.maxErrorEvents = n
	})
}

// setOptions holds the configuration of one write.
type setOptions struct {
	ttl    time.Duration
	levels []Level
	kind   string
	limits eviction.Limits
}

// setOptionFunc wraps a function to implement SetOption.
type setOptionFunc func(*setOptions)

// Compile-time check that setOptionFunc implements SetOption.
var _ SetOption = setOptionFunc(nil)

func (f setOptionFunc) applySet(o *setOptions) { f(o) }

// WithTTL sets the TTL of one write. Zero means the entry never expires.
func WithTTL(d time.Duration) SetOption {
	return setOptionFunc(func(o *setOptions) {
		if d < 0 {
			d = 0
		}
		o.ttl = d
	})
}

// WithKind tags the written entry with a category used for metrics and
// ClearKind.
func WithKind(kind string) SetOption {
	return setOptionFunc(func(o *setOptions) {
		o.kind = kind
	})
}

// WithWriteMaxSizeBytes tightens the size bound used to make room for one
// write. It never loosens the level's own bound.
func WithWriteMaxSizeBytes(n int64) SetOption {
	return setOptionFunc(func(o *setOptions) {
		o.limits.MaxSizeBytes = n
	})
}

// WithWriteMaxEntries tightens the entry bound used to make room for one
// write. It never loosens the level's own bound.
func WithWriteMaxEntries(n int) SetOption {
	return setOptionFunc(func(o *setOptions) {
		o.limits.MaxEntries = n
	})
}

// LevelsOption selects levels. As an Option it sets the levels the cache
// manages; as a SetOption it restricts one write to a subset of them.
type LevelsOption []Level

// Compile-time checks that LevelsOption serves both option kinds.
var (
	_ Option    = LevelsOption(nil)
	_ SetOption = LevelsOption(nil)
)

// WithLevels selects levels for the cache or for one write. An empty write
// selection means every configured level.
func WithLevels(levels ...Level) LevelsOption {
	return LevelsOption(levels)
}

func (l LevelsOption) apply(o *options) {
	o.levels = slices.Clone(l)
	o.levelsSet = true
}

func (l LevelsOption) applySet(o *setOptions) {
	o.levels = slices.Clone(l)
}
