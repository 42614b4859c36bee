package sessionlevel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/codec/zstdcodec"
	"github.com/discochess/tiercache/internal/entry"
	"github.com/discochess/tiercache/internal/level"
	"github.com/discochess/tiercache/internal/store"
	"github.com/discochess/tiercache/internal/store/memstore"
)

// hookHost wraps a memstore so a test can fail or count single calls.
type hookHost struct {
	*memstore.Store
	setItem    func(key string) error
	removeItem func(key string) error
}

func (h *hookHost) SetItem(ctx context.Context, key, value string) error {
	if h.setItem != nil {
		if err := h.setItem(key); err != nil {
			return err
		}
	}
	return h.Store.SetItem(ctx, key, value)
}

func (h *hookHost) RemoveItem(ctx context.Context, key string) error {
	if h.removeItem != nil {
		if err := h.removeItem(key); err != nil {
			return err
		}
	}
	return h.Store.RemoveItem(ctx, key)
}

type product struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func open[V any](t *testing.T, host store.Store, opts ...Option) *Store[V] {
	t.Helper()
	s, err := Open[V](context.Background(), host, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	s := open[product](t, memstore.New(), WithClock(clk))

	want := product{ID: "sku-1", Price: 9.5}
	if err := s.Put(ctx, "p1", entry.New(want, 32, time.Minute, "product", t0)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	clk.Advance(time.Second)
	got, ok, err := s.Get(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("Get() = _, %v, %v; want hit", ok, err)
	}
	if got.Value != want {
		t.Errorf("Get().Value = %+v, want %+v", got.Value, want)
	}
	if got.Meta.Kind != "product" {
		t.Errorf("Get().Meta.Kind = %q, want %q", got.Meta.Kind, "product")
	}
	if got.Meta.AccessCount != 1 {
		t.Errorf("Get().Meta.AccessCount = %d, want 1", got.Meta.AccessCount)
	}
	if !got.Meta.LastAccessedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("Get().Meta.LastAccessedAt = %v, want %v", got.Meta.LastAccessedAt, t0.Add(time.Second))
	}
	if got.TTL != time.Minute || !got.CreatedAt.Equal(t0) {
		t.Errorf("Get() freshness = (%v, %v), want (%v, %v)", got.CreatedAt, got.TTL, t0, time.Minute)
	}
	if s.Len() != 1 || s.SizeBytes() != 32 {
		t.Errorf("Len, SizeBytes = %d, %d; want 1, 32", s.Len(), s.SizeBytes())
	}
}

func TestStore_HostKeys(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host, WithNamespace("shop"))

	if err := s.Put(ctx, "cart", entry.New("x", 1, 0, "", t0)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	for _, k := range []string{"shop:item:cart", "shop:__index"} {
		if _, err := host.GetItem(ctx, k); err != nil {
			t.Errorf("host.GetItem(%q) error = %v", k, err)
		}
	}
}

func TestStore_UserKeyDoesNotCollideWithIndex(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host)

	if err := s.Put(ctx, "__index", entry.New("value", 5, 0, "", t0)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	reopened := open[string](t, host)
	got, ok, err := reopened.Get(ctx, "__index")
	if err != nil || !ok || got.Value != "value" {
		t.Errorf("Get(__index) = %v, %v, %v; want value", got, ok, err)
	}
}

func TestStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := open[int](t, memstore.New())

	s.Put(ctx, "k", entry.New(1, 10, 0, "", t0))
	s.Put(ctx, "k", entry.New(2, 4, 0, "", t0))

	if s.Len() != 1 || s.SizeBytes() != 4 {
		t.Errorf("Len, SizeBytes = %d, %d; want 1, 4", s.Len(), s.SizeBytes())
	}
	got, _, _ := s.Get(ctx, "k")
	if got.Value != 2 {
		t.Errorf("Get().Value = %d, want 2", got.Value)
	}
}

func TestStore_SerializationFailure(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[chan int](t, host)

	err := s.Put(ctx, "ch", entry.New(make(chan int), 8, 0, "", t0))
	if !errors.Is(err, level.ErrSerialization) {
		t.Fatalf("Put() error = %v, want ErrSerialization", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after skipped write", s.Len())
	}
	if host.Len() != 0 {
		t.Errorf("host.Len() = %d, want 0", host.Len())
	}
}

func TestStore_HostQuota(t *testing.T) {
	ctx := context.Background()
	// One slot for the index, one for a single item.
	host := memstore.New(memstore.WithMaxItems(2))
	s := open[string](t, host)

	if err := s.Put(ctx, "a", entry.New("a", 1, 0, "", t0)); err != nil {
		t.Fatalf("Put(a) error = %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	err := s.Put(ctx, "b", entry.New("b", 1, 0, "", t0))
	if !errors.Is(err, level.ErrHostStorage) {
		t.Fatalf("Put(b) error = %v, want ErrHostStorage", err)
	}
	if !errors.Is(err, store.ErrQuotaExceeded) {
		t.Errorf("Put(b) error = %v, want wrapped ErrQuotaExceeded", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_HostOutage(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host)
	s.Put(ctx, "a", entry.New("a", 1, 0, "", t0))

	host.FailWith(errors.New("unavailable"))
	defer host.FailWith(nil)

	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, level.ErrHostStorage) {
		t.Errorf("Get() error = %v, want ErrHostStorage", err)
	}
	if _, err := s.Remove(ctx, "a"); !errors.Is(err, level.ErrHostStorage) {
		t.Errorf("Remove() error = %v, want ErrHostStorage", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, level.ErrHostStorage) {
		t.Errorf("Clear() error = %v, want ErrHostStorage", err)
	}
}

func TestStore_VanishedItemIsMiss(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host)
	s.Put(ctx, "a", entry.New("a", 3, 0, "", t0))

	// The host dropped the item behind our back.
	host.RemoveItem(ctx, "tiercache:item:a")

	_, ok, err := s.Get(ctx, "a")
	if err != nil || ok {
		t.Fatalf("Get() = _, %v, %v; want clean miss", ok, err)
	}
	if s.Len() != 0 || s.SizeBytes() != 0 {
		t.Errorf("Len, SizeBytes = %d, %d; want 0, 0", s.Len(), s.SizeBytes())
	}
}

func TestStore_CorruptItem(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host)
	s.Put(ctx, "a", entry.New("a", 3, 0, "", t0))

	host.SetItem(ctx, "tiercache:item:a", "%%% not base64 %%%")

	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, level.ErrSerialization) {
		t.Fatalf("Get() error = %v, want ErrSerialization", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after dropping corrupt item", s.Len())
	}
}

func TestStore_ReloadAcrossSessions(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	clk := clock.NewFake(t0)

	first := open[string](t, host, WithClock(clk))
	first.Put(ctx, "a", entry.New("alpha", 5, time.Hour, "greek", t0))
	first.Put(ctx, "b", entry.New("beta", 4, 0, "greek", t0))
	clk.Advance(time.Minute)
	first.Get(ctx, "a")
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// "b" vanished from the host between sessions.
	host.RemoveItem(ctx, "tiercache:item:b")

	second := open[string](t, host, WithClock(clk))
	if second.Len() != 1 || second.SizeBytes() != 5 {
		t.Fatalf("reloaded Len, SizeBytes = %d, %d; want 1, 5", second.Len(), second.SizeBytes())
	}

	var seen *entry.Entry[string]
	second.ForEach(ctx, func(key string, e *entry.Entry[string]) bool {
		if key == "a" {
			seen = e
		}
		return true
	})
	if seen == nil {
		t.Fatal("ForEach() did not yield reloaded key a")
	}
	if seen.Meta.AccessCount != 1 || !seen.Meta.LastAccessedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("reloaded access meta = %+v, want count 1 at %v", seen.Meta, t0.Add(time.Minute))
	}
	if seen.TTL != time.Hour {
		t.Errorf("reloaded TTL = %v, want 1h", seen.TTL)
	}

	got, ok, err := second.Get(ctx, "a")
	if err != nil || !ok || got.Value != "alpha" {
		t.Errorf("Get(a) = %v, %v, %v; want alpha", got, ok, err)
	}

	// New writes continue the insertion sequence.
	second.Put(ctx, "c", entry.New("gamma", 1, 0, "", t0))
	var seqA, seqC uint64
	second.ForEach(ctx, func(key string, e *entry.Entry[string]) bool {
		switch key {
		case "a":
			seqA = e.Seq
		case "c":
			seqC = e.Seq
		}
		return true
	})
	if seqC <= seqA {
		t.Errorf("Seq after reload = %d, want > %d", seqC, seqA)
	}
}

func TestStore_CorruptIndexStartsEmpty(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	host.SetItem(ctx, "tiercache:__index", "{not json")

	s := open[string](t, host)
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestOpen_HostFailure(t *testing.T) {
	host := memstore.New()
	host.FailWith(errors.New("unavailable"))

	_, err := Open[string](context.Background(), host)
	if !errors.Is(err, level.ErrHostStorage) {
		t.Errorf("Open() error = %v, want ErrHostStorage", err)
	}
}

func TestOpen_NilHost(t *testing.T) {
	if _, err := Open[string](context.Background(), nil); err == nil {
		t.Error("Open(nil) should return error")
	}
}

func TestStore_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host)
	s.Put(ctx, "a", entry.New("a", 1, 0, "", t0))
	s.Put(ctx, "b", entry.New("b", 1, 0, "", t0))

	removed, err := s.Remove(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("Remove(a) = %v, %v; want true", removed, err)
	}
	removed, err = s.Remove(ctx, "a")
	if err != nil || removed {
		t.Errorf("second Remove(a) = %v, %v; want false", removed, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if s.Len() != 0 || s.SizeBytes() != 0 {
		t.Errorf("Len, SizeBytes = %d, %d; want 0, 0", s.Len(), s.SizeBytes())
	}
	if host.Len() != 0 {
		t.Errorf("host.Len() = %d, want 0 (keys %v)", host.Len(), host.Keys())
	}
}

func TestStore_CompressedPayload(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host, WithCodec(zstdcodec.New()))

	long := ""
	for i := 0; i < 200; i++ {
		long += "repetitive "
	}
	s.Put(ctx, "k", entry.New(long, int64(len(long)), 0, "", t0))

	raw, _ := host.GetItem(ctx, "tiercache:item:k")
	if len(raw) >= len(long) {
		t.Errorf("stored %d chars for %d byte value, want compression", len(raw), len(long))
	}

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || got.Value != long {
		t.Errorf("Get() round trip failed: ok=%v err=%v", ok, err)
	}
}

func TestStore_Level(t *testing.T) {
	s := open[string](t, memstore.New())
	if s.Level() != level.Session {
		t.Errorf("Level() = %v, want session", s.Level())
	}
}

func TestStore_RemoveFunc(t *testing.T) {
	ctx := context.Background()
	host := memstore.New()
	s := open[string](t, host)
	s.Put(ctx, "old", entry.New("o", 2, time.Second, "", t0))
	s.Put(ctx, "new", entry.New("n", 2, time.Hour, "", t0))

	expired := func(e *entry.Entry[string]) bool { return e.Expired(t0.Add(time.Minute)) }

	if removed, err := s.RemoveFunc(ctx, "new", expired); err != nil || removed {
		t.Errorf("RemoveFunc(new) = %v, %v; want false", removed, err)
	}
	if removed, err := s.RemoveFunc(ctx, "old", expired); err != nil || !removed {
		t.Errorf("RemoveFunc(old) = %v, %v; want true", removed, err)
	}
	if _, err := host.GetItem(ctx, "tiercache:item:old"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("host item for old still present: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_FlushBatchesIndexWrites(t *testing.T) {
	ctx := context.Background()
	writes := 0
	host := &hookHost{Store: memstore.New(), setItem: func(key string) error {
		if key == "tiercache:__index" {
			writes++
		}
		return nil
	}}
	s := open[string](t, host)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := s.Put(ctx, k, entry.New(k, 1, 0, "", t0)); err != nil {
			t.Fatalf("Put(%s) error = %v", k, err)
		}
	}
	s.Remove(ctx, "a")
	s.RemoveFunc(ctx, "b", func(*entry.Entry[string]) bool { return true })
	if writes != 0 {
		t.Fatalf("index writes before Flush = %d, want 0", writes)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}
	if writes != 1 {
		t.Errorf("index writes = %d, want 1", writes)
	}

	reopened := open[string](t, host.Store)
	if reopened.Len() != 3 {
		t.Errorf("reopened Len() = %d, want 3", reopened.Len())
	}
}

func TestStore_FailedFlushStaysDirty(t *testing.T) {
	ctx := context.Background()
	failIndex := true
	host := &hookHost{Store: memstore.New(), setItem: func(key string) error {
		if failIndex && key == "tiercache:__index" {
			return errors.New("index write refused")
		}
		return nil
	}}
	s := open[string](t, host)

	if err := s.Put(ctx, "a", entry.New("a", 1, 0, "", t0)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Flush(ctx); !errors.Is(err, level.ErrHostStorage) {
		t.Fatalf("Flush() error = %v, want ErrHostStorage", err)
	}
	removed, err := s.Remove(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v; want true", removed, err)
	}

	failIndex = false
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := host.GetItem(ctx, "tiercache:__index"); err != nil {
		t.Errorf("index not written after recovery: %v", err)
	}
}

func TestStore_CorruptItemRemoveFailure(t *testing.T) {
	ctx := context.Background()
	host := &hookHost{Store: memstore.New(), removeItem: func(key string) error {
		if key == "tiercache:item:a" {
			return errors.New("remove refused")
		}
		return nil
	}}
	s := open[string](t, host)
	s.Put(ctx, "a", entry.New("a", 3, 0, "", t0))
	host.Store.SetItem(ctx, "tiercache:item:a", "%%% not base64 %%%")

	_, _, err := s.Get(ctx, "a")
	if !errors.Is(err, level.ErrSerialization) {
		t.Errorf("Get() error = %v, want ErrSerialization", err)
	}
	if !errors.Is(err, level.ErrHostStorage) {
		t.Errorf("Get() error = %v, want the failed remove joined in", err)
	}
}

func TestStore_ClearPartialFailureReportsIndexWrite(t *testing.T) {
	ctx := context.Background()
	indexErr := errors.New("index write refused")
	host := &hookHost{Store: memstore.New()}
	s := open[string](t, host)
	s.Put(ctx, "a", entry.New("a", 1, 0, "", t0))
	s.Put(ctx, "b", entry.New("b", 1, 0, "", t0))

	host.removeItem = func(key string) error {
		if key == "tiercache:item:a" {
			return errors.New("remove refused")
		}
		return nil
	}
	host.setItem = func(key string) error {
		if key == "tiercache:__index" {
			return indexErr
		}
		return nil
	}

	err := s.Clear(ctx)
	if !errors.Is(err, level.ErrHostStorage) {
		t.Fatalf("Clear() error = %v, want ErrHostStorage", err)
	}
	if !errors.Is(err, indexErr) {
		t.Errorf("Clear() error = %v, want the failed index write joined in", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 for the item still in the host", s.Len())
	}
}
