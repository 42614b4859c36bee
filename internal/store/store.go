// Package store defines the host persistence interface backing the
// session-scoped cache level.
package store

import (
	"context"
	"errors"
)

// Sentinel errors for well-defined host conditions.
var (
	// ErrNotFound is returned when an item does not exist in the store.
	ErrNotFound = errors.New("store: item not found")

	// ErrQuotaExceeded is returned when the host refuses a write because
	// it is out of space.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// Store is a text key/value host API.
// Implementations handle key layout and transport details internally.
type Store interface {
	// GetItem returns the text stored under key, or ErrNotFound.
	GetItem(ctx context.Context, key string) (string, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
