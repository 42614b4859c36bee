// Package gcsstore implements a Google Cloud Storage host store.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/discochess/tiercache/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is a Google Cloud Storage host store. Each item is one object.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// New creates a new GCS store.
// The bucket must already exist.
func New(ctx context.Context, bucketName string, opts ...Option) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &Store{
		client: client,
		bucket: client.Bucket(bucketName),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimSuffix(prefix, "/")
		if s.prefix != "" {
			s.prefix += "/"
		}
	}
}

// GetItem downloads the object for key.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	reader, err := s.bucket.Object(s.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("creating reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading object: %w", err)
	}
	return string(data), nil
}

// SetItem uploads value as the object for key.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	w := s.bucket.Object(s.objectKey(key)).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	if _, err := io.WriteString(w, value); err != nil {
		w.Close()
		return fmt.Errorf("writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("committing object: %w", err)
	}
	return nil
}

// RemoveItem deletes the object for key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	err := s.bucket.Object(s.objectKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *Store) Close() error {
	return s.client.Close()
}

// objectKey returns the full object key for an item.
func (s *Store) objectKey(key string) string {
	return s.prefix + "items/" + key
}
