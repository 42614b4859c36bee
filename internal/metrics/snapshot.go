package metrics

import (
	"time"

	"github.com/discochess/tiercache/internal/level"
)

// LevelMetrics holds the running counters of one level.
type LevelMetrics struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Rejections  int64
	Errors      int64
	HitRatio    float64
	SizeBytes   int64
	Entries     int
}

// KindMetrics breaks engine activity down by entry kind.
type KindMetrics struct {
	Hits   int64
	Writes int64
}

// Timing is a moving average over the most recent samples of an operation.
type Timing struct {
	Average time.Duration
	Samples int
}

// ErrorEvent is a structured record of a failure that was not returned to
// the caller.
type ErrorEvent struct {
	Operation string
	// Level is empty for failures not tied to a level.
	Level     string
	Message   string
	Key       string
	Timestamp time.Time
}

// Snapshot is a point-in-time, read-only view of the cache metrics.
type Snapshot struct {
	Levels map[level.Level]LevelMetrics

	// Hits and Misses count engine operations: a read that hit any level
	// is one hit, a read that missed every level is one miss.
	Hits     int64
	Misses   int64
	HitRatio float64

	SizeBytes int64
	Entries   int

	Timings map[string]Timing
	Kinds   map[string]KindMetrics
	Errors  []ErrorEvent
}

// Usage is the occupancy of one level at snapshot time.
type Usage struct {
	SizeBytes int64
	Entries   int
}

// HitRatio returns hits / (hits + misses), or 0 when both are zero.
func HitRatio(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
