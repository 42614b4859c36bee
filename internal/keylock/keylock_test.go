package keylock

import (
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestNew_DefaultStripes(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, DefaultStripes},
		{-3, DefaultStripes},
		{16, 16},
	}
	for _, tt := range tests {
		if got := New(tt.n).Len(); got != tt.want {
			t.Errorf("New(%d).Len() = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestLocks_Stripe_Consistency(t *testing.T) {
	l := New(64)
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		s1, s2 := l.Stripe(key), l.Stripe(key)
		if s1 != s2 {
			t.Errorf("Stripe(%q) not consistent: %d and %d", key, s1, s2)
		}
		if s1 < 0 || s1 >= l.Len() {
			t.Errorf("Stripe(%q) = %d, out of range", key, s1)
		}
	}
}

func TestLocks_Stripe_Distribution(t *testing.T) {
	l := New(16)
	used := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		used[l.Stripe(fmt.Sprintf("user:%d", i))] = true
	}
	// 1000 keys over 16 stripes should touch every stripe.
	if len(used) != 16 {
		t.Errorf("keys hit %d stripes, want 16", len(used))
	}
}

func TestFNV1a32_KnownValues(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0x811c9dc5},
		{"a", 0xe40c292c},
		{"foobar", 0xbf9cf968},
	}
	for _, tt := range tests {
		if got := fnv1a32(tt.in); got != tt.want {
			t.Errorf("fnv1a32(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestLocks_SerializesSameKey(t *testing.T) {
	l := New(8)
	counter := 0

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				unlock := l.Lock("shared")
				counter++
				unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if counter != 5000 {
		t.Errorf("counter = %d, want 5000", counter)
	}
}
