// Package diskstore implements a filesystem host store with one file per
// item.
package diskstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/discochess/tiercache/internal/store"
)

// ErrLocked is returned by New when another process holds the root lock.
var ErrLocked = errors.New("diskstore: root directory is locked by another process")

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is a disk-based host store.
type Store struct {
	root string
	lock *flock.Flock
}

// Option configures a Store.
type Option func(*options)

type options struct {
	exclusive bool
}

// WithExclusiveLock holds an advisory lock on the root directory for the
// lifetime of the store, so two processes never share one session.
func WithExclusiveLock() Option {
	return func(o *options) {
		o.exclusive = true
	}
}

// New creates a new disk store rooted at the given directory.
// The directory must exist; the items subdirectory is created on demand.
func New(root string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	if err := os.MkdirAll(filepath.Join(root, "items"), 0o755); err != nil {
		return nil, fmt.Errorf("creating items directory: %w", err)
	}

	s := &Store{root: root}
	if o.exclusive {
		fl := flock.New(filepath.Join(root, ".lock"))
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("locking root directory: %w", err)
		}
		if !locked {
			return nil, ErrLocked
		}
		s.lock = fl
	}
	return s, nil
}

// GetItem reads the item file for key.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.itemPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("reading item: %w", err)
	}
	return string(data), nil
}

// SetItem writes the item file for key. The write goes through a
// temporary file so readers never observe a partial item.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.itemPath(key)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("writing item: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing item: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("committing item: %w", err)
	}
	return nil
}

// RemoveItem deletes the item file for key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.itemPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing item: %w", err)
	}
	return nil
}

// Close releases the root lock, if held.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("unlocking root directory: %w", err)
	}
	return nil
}

// itemPath returns the filesystem path for a key.
func (s *Store) itemPath(key string) string {
	return filepath.Join(s.root, "items", itemName(key))
}

// itemName maps key to a fixed-length lowercase file name, so long keys
// stay under name limits and keys differing only in case stay distinct on
// case-insensitive filesystems.
func itemName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
