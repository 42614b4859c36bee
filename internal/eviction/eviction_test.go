package eviction

import (
	"errors"
	"testing"
	"time"

	"github.com/discochess/tiercache/internal/level"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

func keys(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Key
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLimits_Fits(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		size    int64
		entries int
		want    bool
	}{
		{"unbounded", Limits{}, 1 << 40, 1 << 20, true},
		{"at size limit", Limits{MaxSizeBytes: 100}, 100, 1, true},
		{"over size limit", Limits{MaxSizeBytes: 100}, 101, 1, false},
		{"at entry limit", Limits{MaxEntries: 2}, 0, 2, true},
		{"over entry limit", Limits{MaxEntries: 2}, 0, 3, false},
		{"both bounds, one over", Limits{MaxSizeBytes: 100, MaxEntries: 2}, 50, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limits.Fits(tt.size, tt.entries); got != tt.want {
				t.Errorf("Fits(%d, %d) = %v, want %v", tt.size, tt.entries, got, tt.want)
			}
		})
	}
}

func TestLimits_Tighten(t *testing.T) {
	tests := []struct {
		name string
		l, o Limits
		want Limits
	}{
		{"zero override keeps base", Limits{100, 10}, Limits{}, Limits{100, 10}},
		{"smaller override wins", Limits{100, 10}, Limits{50, 5}, Limits{50, 5}},
		{"larger override ignored", Limits{100, 10}, Limits{500, 50}, Limits{100, 10}},
		{"override fills disabled bound", Limits{}, Limits{50, 0}, Limits{50, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.l.Tighten(tt.o); got != tt.want {
				t.Errorf("Tighten() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAdmit(t *testing.T) {
	l := Limits{MaxSizeBytes: 10}
	if err := Admit(l, 10); err != nil {
		t.Errorf("Admit(10) error = %v, want nil", err)
	}
	if err := Admit(l, 11); !errors.Is(err, level.ErrCapacityRejected) {
		t.Errorf("Admit(11) error = %v, want ErrCapacityRejected", err)
	}
	if err := Admit(Limits{}, 1<<40); err != nil {
		t.Errorf("Admit() with no bound error = %v, want nil", err)
	}
}

func TestLRU_Order(t *testing.T) {
	cands := []Candidate{
		{Key: "recent", LastAccessedAt: at(30), AccessCount: 1, Seq: 1},
		{Key: "old", LastAccessedAt: at(10), AccessCount: 5, Seq: 2},
		{Key: "tie-busy", LastAccessedAt: at(20), AccessCount: 3, Seq: 3},
		{Key: "tie-idle-late", LastAccessedAt: at(20), AccessCount: 0, Seq: 5},
		{Key: "tie-idle-early", LastAccessedAt: at(20), AccessCount: 0, Seq: 4},
	}

	got := keys(Plan(LRU(), Limits{MaxEntries: 1}, cands, Usage{Entries: len(cands)}, Usage{}))
	want := []string{"old", "tie-idle-early", "tie-idle-late", "tie-busy"}
	if !equal(got, want) {
		t.Errorf("LRU victims = %v, want %v", got, want)
	}
}

func TestLFU_Order(t *testing.T) {
	cands := []Candidate{
		{Key: "hot", LastAccessedAt: at(1), AccessCount: 9, Seq: 1},
		{Key: "cold", LastAccessedAt: at(50), AccessCount: 0, Seq: 2},
		{Key: "warm", LastAccessedAt: at(40), AccessCount: 2, Seq: 3},
	}
	got := keys(Plan(LFU(), Limits{MaxEntries: 1}, cands, Usage{Entries: 3}, Usage{}))
	want := []string{"cold", "warm"}
	if !equal(got, want) {
		t.Errorf("LFU victims = %v, want %v", got, want)
	}
}

func TestFIFO_Order(t *testing.T) {
	cands := []Candidate{
		{Key: "second", LastAccessedAt: at(1), Seq: 2},
		{Key: "third", LastAccessedAt: at(0), Seq: 3},
		{Key: "first", LastAccessedAt: at(99), AccessCount: 9, Seq: 1},
	}
	got := keys(Plan(FIFO(), Limits{MaxEntries: 2}, cands, Usage{Entries: 3}, Usage{Entries: 1}))
	want := []string{"first", "second"}
	if !equal(got, want) {
		t.Errorf("FIFO victims = %v, want %v", got, want)
	}
}

func TestPlan_SizeBound(t *testing.T) {
	cands := []Candidate{
		{Key: "a", LastAccessedAt: at(1), Seq: 1, SizeBytes: 40},
		{Key: "b", LastAccessedAt: at(2), Seq: 2, SizeBytes: 40},
		{Key: "c", LastAccessedAt: at(3), Seq: 3, SizeBytes: 20},
	}
	// 100 stored + 30 incoming against a 100 byte bound: dropping "a" suffices.
	got := keys(Plan(LRU(), Limits{MaxSizeBytes: 100}, cands,
		Usage{SizeBytes: 100, Entries: 3}, Usage{SizeBytes: 30, Entries: 1}))
	if !equal(got, []string{"a"}) {
		t.Errorf("victims = %v, want [a]", got)
	}
}

func TestPlan_AlreadyFits(t *testing.T) {
	cands := []Candidate{{Key: "a", Seq: 1, SizeBytes: 1}}
	if got := Plan(LRU(), Limits{MaxEntries: 5}, cands, Usage{SizeBytes: 1, Entries: 1}, Usage{Entries: 1}); got != nil {
		t.Errorf("Plan() = %v, want nil", got)
	}
}

func TestPlan_OneOverEvictsExactlyOne(t *testing.T) {
	cands := []Candidate{
		{Key: "a", LastAccessedAt: at(1), Seq: 1},
		{Key: "b", LastAccessedAt: at(2), Seq: 2},
	}
	got := keys(Plan(LRU(), Limits{MaxEntries: 2}, cands, Usage{Entries: 2}, Usage{Entries: 1}))
	if !equal(got, []string{"a"}) {
		t.Errorf("victims = %v, want [a]", got)
	}
}

func TestPlan_DoesNotReorderInput(t *testing.T) {
	cands := []Candidate{
		{Key: "b", Seq: 2},
		{Key: "a", Seq: 1},
	}
	Plan(FIFO(), Limits{MaxEntries: 1}, cands, Usage{Entries: 2}, Usage{})
	if cands[0].Key != "b" {
		t.Error("Plan() mutated its input slice")
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "lru", false},
		{"LRU", "lru", false},
		{"lfu", "lfu", false},
		{" fifo ", "fifo", false},
		{"random", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ByName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ByName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && p.Name() != tt.want {
				t.Errorf("ByName(%q).Name() = %q, want %q", tt.in, p.Name(), tt.want)
			}
		})
	}
}
