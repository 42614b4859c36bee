// Package metrics records cache activity and assembles point-in-time
// snapshots. Every recorded event is also forwarded to a stats.Collector.
package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/level"
	"github.com/discochess/tiercache/internal/stats"
)

// Operation names used for timings and error events.
const (
	OpGet     = "get"
	OpSet     = "set"
	OpDelete  = "delete"
	OpClear   = "clear"
	OpPromote = "promote"
	OpSweep   = "sweep"
	OpWarmup  = "warmup"
	OpClose   = "close"
)

// Defaults for a Recorder.
const (
	DefaultWindow         = 100
	DefaultMaxErrorEvents = 100
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithWindow sets how many recent samples the timing averages cover.
func WithWindow(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.window = n
		}
	}
}

// WithMaxErrorEvents bounds the number of retained error events.
func WithMaxErrorEvents(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.maxErrors = n
		}
	}
}

// WithCollector forwards recorded events to c.
func WithCollector(c stats.Collector) Option {
	return func(r *Recorder) {
		if c != nil {
			r.collector = c
		}
	}
}

// WithLogger sets the logger used for error events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock used to stamp error events.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) {
		if c != nil {
			r.clock = c
		}
	}
}

// Recorder accumulates cache metrics. It is safe for concurrent use.
type Recorder struct {
	collector stats.Collector
	logger    *zap.Logger
	clock     clock.Clock
	window    int
	maxErrors int

	mu      sync.Mutex
	levels  map[level.Level]*LevelMetrics
	hits    int64
	misses  int64
	kinds   map[string]*KindMetrics
	samples map[string]*samples
	errors  []ErrorEvent
	next    int
}

// NewRecorder creates an empty recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		collector: stats.NewNoop(),
		logger:    zap.NewNop(),
		clock:     clock.Real(),
		window:    DefaultWindow,
		maxErrors: DefaultMaxErrorEvents,
		levels:    make(map[level.Level]*LevelMetrics),
		kinds:     make(map[string]*KindMetrics),
		samples:   make(map[string]*samples),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) levelLocked(l level.Level) *LevelMetrics {
	m, ok := r.levels[l]
	if !ok {
		m = &LevelMetrics{}
		r.levels[l] = m
	}
	return m
}

func (r *Recorder) kindLocked(kind string) *KindMetrics {
	m, ok := r.kinds[kind]
	if !ok {
		m = &KindMetrics{}
		r.kinds[kind] = m
	}
	return m
}

// LevelHit records a hit on one level.
func (r *Recorder) LevelHit(l level.Level) {
	r.mu.Lock()
	r.levelLocked(l).Hits++
	r.mu.Unlock()
	r.collector.IncCounter(stats.MetricHits, l.String(), 1)
}

// LevelMiss records a miss on one level.
func (r *Recorder) LevelMiss(l level.Level) {
	r.mu.Lock()
	r.levelLocked(l).Misses++
	r.mu.Unlock()
	r.collector.IncCounter(stats.MetricMisses, l.String(), 1)
}

// Hit records an engine-level hit on an entry of the given kind.
func (r *Recorder) Hit(kind string) {
	r.mu.Lock()
	r.hits++
	r.kindLocked(kind).Hits++
	r.mu.Unlock()
}

// Miss records an engine-level miss.
func (r *Recorder) Miss() {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

// Write records a successful write into level l.
func (r *Recorder) Write(l level.Level) {
	r.collector.IncCounter(stats.MetricWrites, l.String(), 1)
}

// KindWrite records one engine write of the given kind.
func (r *Recorder) KindWrite(kind string) {
	r.mu.Lock()
	r.kindLocked(kind).Writes++
	r.mu.Unlock()
}

// Evicted records n evictions from level l.
func (r *Recorder) Evicted(l level.Level, n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.levelLocked(l).Evictions += int64(n)
	r.mu.Unlock()
	r.collector.IncCounter(stats.MetricEvictions, l.String(), int64(n))
}

// Expired records n entries removed from level l because their TTL elapsed.
func (r *Recorder) Expired(l level.Level, n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.levelLocked(l).Expirations += int64(n)
	r.mu.Unlock()
	r.collector.IncCounter(stats.MetricExpirations, l.String(), int64(n))
}

// Rejected records a write refused by level l for capacity.
func (r *Recorder) Rejected(l level.Level) {
	r.mu.Lock()
	r.levelLocked(l).Rejections++
	r.mu.Unlock()
	r.collector.IncCounter(stats.MetricRejections, l.String(), 1)
}

// Promoted records a value copied into level l after a slower-level hit.
func (r *Recorder) Promoted(l level.Level) {
	r.collector.IncCounter(stats.MetricPromotions, l.String(), 1)
}

// Usage exports the current occupancy of level l.
func (r *Recorder) Usage(l level.Level, u Usage) {
	r.collector.SetGauge(stats.MetricSizeBytes, l.String(), u.SizeBytes)
	r.collector.SetGauge(stats.MetricEntries, l.String(), int64(u.Entries))
}

// Swept records a completed cleanup pass.
func (r *Recorder) Swept(d time.Duration) {
	r.collector.IncCounter(stats.MetricSweeps, stats.LevelNone, 1)
	r.collector.ObserveHistogram(stats.MetricOpDuration, OpSweep, d.Seconds())
}

// SweepSkipped records a cleanup tick dropped because a pass was running.
func (r *Recorder) SweepSkipped() {
	r.collector.IncCounter(stats.MetricSweepsSkipped, stats.LevelNone, 1)
}

// Observe adds a duration sample for op.
func (r *Recorder) Observe(op string, d time.Duration) {
	r.mu.Lock()
	s, ok := r.samples[op]
	if !ok {
		s = newSamples(r.window)
		r.samples[op] = s
	}
	s.add(float64(d))
	r.mu.Unlock()
	r.collector.ObserveHistogram(stats.MetricOpDuration, op, d.Seconds())
}

// Error records a failure local to level l. The oldest event is dropped
// once the retention bound is reached.
func (r *Recorder) Error(op string, l level.Level, key string, err error) {
	r.record(op, l.String(), key, err)
	r.mu.Lock()
	r.levelLocked(l).Errors++
	r.mu.Unlock()
	r.collector.IncCounter(stats.MetricErrors, l.String(), 1)
}

// EngineError records a failure not tied to a single level.
func (r *Recorder) EngineError(op, key string, err error) {
	r.record(op, "", key, err)
	r.collector.IncCounter(stats.MetricErrors, stats.LevelNone, 1)
}

func (r *Recorder) record(op, lvl, key string, err error) {
	ev := ErrorEvent{
		Operation: op,
		Level:     lvl,
		Message:   err.Error(),
		Key:       key,
		Timestamp: r.clock.Now(),
	}
	r.logger.Warn("cache operation failed",
		zap.String("operation", op),
		zap.String("level", lvl),
		zap.String("key", key),
		zap.Error(err),
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) < r.maxErrors {
		r.errors = append(r.errors, ev)
		return
	}
	r.errors[r.next] = ev
	r.next = (r.next + 1) % r.maxErrors
}

// Snapshot assembles the current metrics. usage supplies the occupancy of
// each configured level; levels without recorded activity still appear.
func (r *Recorder) Snapshot(usage map[level.Level]Usage) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Levels:   make(map[level.Level]LevelMetrics, len(usage)),
		Hits:     r.hits,
		Misses:   r.misses,
		HitRatio: HitRatio(r.hits, r.misses),
		Timings:  make(map[string]Timing, len(r.samples)),
		Kinds:    make(map[string]KindMetrics, len(r.kinds)),
	}

	for l, u := range usage {
		var lm LevelMetrics
		if m, ok := r.levels[l]; ok {
			lm = *m
		}
		lm.HitRatio = HitRatio(lm.Hits, lm.Misses)
		lm.SizeBytes = u.SizeBytes
		lm.Entries = u.Entries
		snap.Levels[l] = lm
		snap.SizeBytes += u.SizeBytes
		snap.Entries += u.Entries
	}
	for op, s := range r.samples {
		snap.Timings[op] = s.timing()
	}
	for k, m := range r.kinds {
		snap.Kinds[k] = *m
	}

	snap.Errors = make([]ErrorEvent, 0, len(r.errors))
	snap.Errors = append(snap.Errors, r.errors[r.next:]...)
	snap.Errors = append(snap.Errors, r.errors[:r.next]...)
	return snap
}

// samples is a fixed-size ring of duration samples in nanoseconds.
type samples struct {
	buf  []float64
	next int
	full bool
}

func newSamples(n int) *samples {
	return &samples{buf: make([]float64, n)}
}

func (s *samples) add(v float64) {
	s.buf[s.next] = v
	s.next++
	if s.next == len(s.buf) {
		s.next = 0
		s.full = true
	}
}

func (s *samples) values() []float64 {
	if s.full {
		return s.buf
	}
	return s.buf[:s.next]
}

func (s *samples) timing() Timing {
	vals := s.values()
	if len(vals) == 0 {
		return Timing{}
	}
	mean := stat.Mean(vals, nil)
	return Timing{
		Average: time.Duration(mean),
		Samples: len(vals),
	}
}
