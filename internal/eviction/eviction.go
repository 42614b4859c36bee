// Package eviction decides which entries a level store drops when it
// exceeds its capacity bounds.
package eviction

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/discochess/tiercache/internal/level"
)

// Limits bounds a level store. A zero field disables that bound.
type Limits struct {
	MaxSizeBytes int64
	MaxEntries   int
}

// Tighten returns the stricter of l and o for each bound.
// Zero fields in o leave the bound in l unchanged.
func (l Limits) Tighten(o Limits) Limits {
	if o.MaxSizeBytes > 0 && (l.MaxSizeBytes == 0 || o.MaxSizeBytes < l.MaxSizeBytes) {
		l.MaxSizeBytes = o.MaxSizeBytes
	}
	if o.MaxEntries > 0 && (l.MaxEntries == 0 || o.MaxEntries < l.MaxEntries) {
		l.MaxEntries = o.MaxEntries
	}
	return l
}

// Fits reports whether a store holding sizeBytes across entries is within l.
func (l Limits) Fits(sizeBytes int64, entries int) bool {
	if l.MaxSizeBytes > 0 && sizeBytes > l.MaxSizeBytes {
		return false
	}
	if l.MaxEntries > 0 && entries > l.MaxEntries {
		return false
	}
	return true
}

// Admit rejects an entry whose size alone exceeds l.MaxSizeBytes.
func Admit(l Limits, sizeBytes int64) error {
	if l.MaxSizeBytes > 0 && sizeBytes > l.MaxSizeBytes {
		return fmt.Errorf("entry of %d bytes exceeds limit of %d bytes: %w",
			sizeBytes, l.MaxSizeBytes, level.ErrCapacityRejected)
	}
	return nil
}

// Candidate is the ranking view of a stored entry.
type Candidate struct {
	Key            string
	LastAccessedAt time.Time
	AccessCount    int64
	Seq            uint64
	SizeBytes      int64
}

// Policy ranks eviction candidates.
type Policy interface {
	// Name returns the policy name used in configuration.
	Name() string

	// Compare returns a negative number when a should be evicted before b,
	// a positive number when b should go first, and zero when tied.
	Compare(a, b Candidate) int
}

// Usage is the current occupancy of a level store.
type Usage struct {
	SizeBytes int64
	Entries   int
}

// Plan returns the candidates to evict, in eviction order, so that the
// store fits l after adding incoming. Victims are taken one at a time in
// policy order until both bounds are satisfied. Pass a zero incoming to
// enforce limits on the store as it stands.
func Plan(p Policy, l Limits, cands []Candidate, current, incoming Usage) []Candidate {
	size := current.SizeBytes + incoming.SizeBytes
	count := current.Entries + incoming.Entries
	if l.Fits(size, count) {
		return nil
	}

	ordered := slices.Clone(cands)
	slices.SortStableFunc(ordered, p.Compare)

	var victims []Candidate
	for _, c := range ordered {
		if l.Fits(size, count) {
			break
		}
		victims = append(victims, c)
		size -= c.SizeBytes
		count--
	}
	return victims
}

// Names lists the accepted policy names.
var Names = []string{"lru", "lfu", "fifo"}

// ByName returns the policy registered under name.
// An empty name selects LRU.
func ByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lru":
		return LRU(), nil
	case "lfu":
		return LFU(), nil
	case "fifo":
		return FIFO(), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}
