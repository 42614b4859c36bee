package tiercache

import (
	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/codec"
	"github.com/discochess/tiercache/internal/codec/codecs"
	"github.com/discochess/tiercache/internal/eviction"
	"github.com/discochess/tiercache/internal/level"
	"github.com/discochess/tiercache/internal/level/sessionlevel"
	"github.com/discochess/tiercache/internal/metrics"
	"github.com/discochess/tiercache/internal/store"
)

// Level identifies one tier of the cache hierarchy, fastest first.
type Level = level.Level

// Cache levels.
const (
	Memory  = level.Memory
	Session = level.Session
)

// ParseLevel converts "memory" or "session" into a Level.
func ParseLevel(s string) (Level, error) {
	return level.Parse(s)
}

// Metrics is a point-in-time snapshot of cache activity.
type Metrics = metrics.Snapshot

// LevelMetrics holds the counters of one level.
type LevelMetrics = metrics.LevelMetrics

// KindMetrics holds the counters of one entry kind.
type KindMetrics = metrics.KindMetrics

// Timing is a moving-average operation duration.
type Timing = metrics.Timing

// ErrorEvent records a failure that was not returned to the caller.
type ErrorEvent = metrics.ErrorEvent

// Operation names used in Metrics.Timings and ErrorEvent.Operation.
const (
	OpGet     = metrics.OpGet
	OpSet     = metrics.OpSet
	OpDelete  = metrics.OpDelete
	OpClear   = metrics.OpClear
	OpPromote = metrics.OpPromote
	OpSweep   = metrics.OpSweep
	OpWarmup  = metrics.OpWarmup
	OpClose   = metrics.OpClose
)

// HostStore is the text key/value API the session level persists through.
// GetItem must return ErrHostItemNotFound for absent keys.
type HostStore = store.Store

// ErrHostItemNotFound is returned by a HostStore for absent keys.
var ErrHostItemNotFound = store.ErrNotFound

// ValueCodec encodes values for the session level.
type ValueCodec = sessionlevel.ValueCodec

// JSONCodec returns the default JSON value codec.
func JSONCodec() ValueCodec {
	return sessionlevel.JSON()
}

// Codec compresses session payloads.
type Codec = codec.Codec

// CodecByName returns the payload codec named "none", "gzip" or "zstd".
// A level of zero keeps the codec's default compression level.
func CodecByName(name string, level int) (Codec, error) {
	return codecs.ByName(name, level)
}

// Policy ranks entries for eviction.
type Policy = eviction.Policy

// LRU evicts the least recently accessed entry first.
func LRU() Policy { return eviction.LRU() }

// LFU evicts the least frequently accessed entry first.
func LFU() Policy { return eviction.LFU() }

// FIFO evicts the earliest inserted entry first.
func FIFO() Policy { return eviction.FIFO() }

// Clock supplies the current time.
type Clock = clock.Clock
