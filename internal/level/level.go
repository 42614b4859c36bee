// Package level defines cache tiers and the contract every tier store
// implements.
package level

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/discochess/tiercache/internal/entry"
)

// Sentinel errors for failures local to one level.
var (
	// ErrCapacityRejected indicates a single entry is larger than the
	// level's size bound and was not admitted.
	ErrCapacityRejected = errors.New("level: entry exceeds capacity")

	// ErrSerialization indicates a value could not be encoded or decoded
	// for a persistent level.
	ErrSerialization = errors.New("level: serialization failure")

	// ErrHostStorage indicates the backing host store failed.
	ErrHostStorage = errors.New("level: host storage failure")
)

// Level identifies one tier of the cache hierarchy.
// Levels are ordered fastest first.
type Level int

const (
	// Memory is the volatile in-process tier.
	Memory Level = iota
	// Session is the session-scoped persistent tier.
	Session
)

// All lists every level, fastest first.
var All = []Level{Memory, Session}

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case Memory:
		return "memory"
	case Session:
		return "session"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == Memory || l == Session
}

// Parse converts a level name into a Level.
func Parse(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "memory", "mem":
		return Memory, nil
	case "session":
		return Session, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}

// Store is the uniform contract over entries for one storage tier.
// Implementations must be safe for concurrent use.
type Store[V any] interface {
	// Level returns the tier this store serves.
	Level() Level

	// Get returns the entry stored under key and records a successful
	// access on it. Expiry is not checked.
	Get(ctx context.Context, key string) (*entry.Entry[V], bool, error)

	// Put stores e under key, replacing any previous entry.
	Put(ctx context.Context, key string, e *entry.Entry[V]) error

	// Remove deletes key and reports whether it was present.
	Remove(ctx context.Context, key string) (bool, error)

	// RemoveFunc deletes key only if pred reports true for its resident
	// entry, and reports whether it did. No access is recorded.
	RemoveFunc(ctx context.Context, key string, pred func(e *entry.Entry[V]) bool) (bool, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// ForEach calls fn for each entry until fn returns false.
	// fn must not call back into the store. Stores that keep values
	// outside the process may leave Value unset.
	ForEach(ctx context.Context, fn func(key string, e *entry.Entry[V]) bool) error

	// SizeBytes returns the sum of SizeBytes over resident entries.
	SizeBytes() int64

	// Len returns the number of resident entries.
	Len() int

	// Close releases resources held by the store.
	Close() error
}

// Flusher is implemented by stores that defer writing their bookkeeping.
// The engine calls Flush once at the end of each mutating operation.
type Flusher interface {
	Flush(ctx context.Context) error
}
