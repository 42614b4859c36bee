package tiercache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/stats"
	"github.com/discochess/tiercache/internal/store/memstore"
)

// countingCollector records counters in memory.
type countingCollector struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newCountingCollector() *countingCollector {
	return &countingCollector{counters: make(map[string]int64)}
}

func (c *countingCollector) IncCounter(name, label string, delta int64) {
	c.mu.Lock()
	c.counters[name+"/"+label] += delta
	c.mu.Unlock()
}

func (c *countingCollector) SetGauge(string, string, int64)          {}
func (c *countingCollector) ObserveHistogram(string, string, float64) {}

func (c *countingCollector) get(name, label string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name+"/"+label]
}

func TestSweep_RemovesExpired(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	c := newCache[int](t, WithClock(clk), WithSessionStore(memstore.New()))

	c.Set(ctx, "short", 1, WithTTL(time.Second))
	c.Set(ctx, "long", 2, WithTTL(time.Hour))
	c.Set(ctx, "forever", 3, WithTTL(0))
	clk.Advance(time.Minute)

	c.Sweep(ctx)

	m := c.Metrics()
	for _, l := range c.Levels() {
		if got := m.Levels[l].Entries; got != 2 {
			t.Errorf("%v Entries = %d, want 2", l, got)
		}
		if got := m.Levels[l].Expirations; got != 1 {
			t.Errorf("%v Expirations = %d, want 1", l, got)
		}
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Error("unexpired entry removed by sweep")
	}
}

func TestSweep_EnforcesLimitsAfterReload(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	host := memstore.New()

	first := newCache[int](t, WithClock(clk), WithDefaultTTL(0), WithSessionStore(host))
	for i := 0; i < 4; i++ {
		first.Set(ctx, fmt.Sprintf("k%d", i), i)
		clk.Advance(time.Second)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := newCache[int](t,
		WithClock(clk),
		WithDefaultTTL(0),
		WithSessionStore(host),
		WithLevelLimits(Session, 0, 2),
	)
	if got := second.Metrics().Levels[Session].Entries; got != 4 {
		t.Fatalf("reloaded Entries = %d, want 4", got)
	}

	second.Sweep(ctx)

	m := second.Metrics()
	if got := m.Levels[Session].Entries; got != 2 {
		t.Errorf("Entries = %d, want 2", got)
	}
	if got := m.Levels[Session].Evictions; got != 2 {
		t.Errorf("Evictions = %d, want 2", got)
	}
	for _, k := range []string{"k2", "k3"} {
		if _, ok := second.GetFrom(ctx, k, Session); !ok {
			t.Errorf("%s should survive the sweep", k)
		}
	}
}

func TestSweep_SkippedWhileRunning(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	col := newCountingCollector()
	c := newCache[int](t, WithClock(clk), WithStats(col))

	c.Set(ctx, "k", 1, WithTTL(time.Second))
	clk.Advance(time.Minute)

	c.sweeping.Store(true)
	c.Sweep(ctx)
	if got := c.Metrics().Entries; got != 1 {
		t.Errorf("Entries = %d, want 1 after skipped sweep", got)
	}
	if got := col.get(stats.MetricSweepsSkipped, stats.LevelNone); got != 1 {
		t.Errorf("skipped sweeps = %d, want 1", got)
	}

	c.sweeping.Store(false)
	c.Sweep(ctx)
	if got := c.Metrics().Entries; got != 0 {
		t.Errorf("Entries = %d, want 0 after sweep", got)
	}
	if got := col.get(stats.MetricSweeps, stats.LevelNone); got != 1 {
		t.Errorf("sweeps = %d, want 1", got)
	}
}

func TestSweep_Background(t *testing.T) {
	ctx := context.Background()
	c, err := New[int](WithCleanupInterval(5 * time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	c.Set(ctx, "k", 1, WithTTL(time.Millisecond))

	deadline := time.Now().Add(2 * time.Second)
	for c.Metrics().Entries != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep did not remove the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := c.Metrics().Levels[Memory].Expirations; got != 1 {
		t.Errorf("Expirations = %d, want 1", got)
	}
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	var s sweeper
	s.start(0, func(context.Context) { t.Error("sweep ran with a zero interval") })
	s.stop()
	s.stop()
}
