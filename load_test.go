package tiercache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestGetOrLoad_CachesResult(t *testing.T) {
	ctx := context.Background()
	c := newCache[string](t)

	var calls atomic.Int32
	load := func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		return "loaded-" + key, nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrLoad(ctx, "k", load, WithKind("product"))
		if err != nil {
			t.Fatalf("GetOrLoad() error = %v", err)
		}
		if got != "loaded-k" {
			t.Errorf("GetOrLoad() = %q, want loaded-k", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	if w := c.Metrics().Kinds["product"].Writes; w != 1 {
		t.Errorf("product writes = %d, want 1", w)
	}
}

func TestGetOrLoad_Error(t *testing.T) {
	ctx := context.Background()
	c := newCache[int](t)
	errUpstream := errors.New("upstream unavailable")

	_, err := c.GetOrLoad(ctx, "k", func(context.Context, string) (int, error) {
		return 0, errUpstream
	})
	if !errors.Is(err, errUpstream) {
		t.Fatalf("GetOrLoad() error = %v, want %v", err, errUpstream)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("failed load should not be cached")
	}
}

func TestGetOrLoad_Coalesces(t *testing.T) {
	ctx := context.Background()
	c := newCache[int](t)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context, string) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var g errgroup.Group
	results := make([]int, 10)
	for i := range results {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "shared", load)
			results[i] = v
			return err
		})
	}
	time.Sleep(100 * time.Millisecond)
	close(release)

	if err := g.Wait(); err != nil {
		t.Fatalf("GetOrLoad() error = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("results[%d] = %d, want 7", i, v)
		}
	}
}
