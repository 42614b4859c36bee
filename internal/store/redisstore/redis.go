// Package redisstore implements a Redis host store.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/discochess/tiercache/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is a Redis-backed host store. Items are plain string keys under a
// configurable prefix. An optional expiry bounds how long items survive in
// Redis, which models a session lifetime.
type Store struct {
	client redis.UniversalClient
	prefix string
	expiry time.Duration
	owned  bool
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimSuffix(prefix, ":")
		if s.prefix != "" {
			s.prefix += ":"
		}
	}
}

// WithSessionExpiry sets a Redis-side expiry applied on every write.
// Zero disables it.
func WithSessionExpiry(d time.Duration) Option {
	return func(s *Store) { s.expiry = d }
}

// New connects to Redis at addr and verifies the connection.
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	s := NewWithClient(client, opts...)
	s.owned = true
	return s, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of
// the client; Close does not close it.
func NewWithClient(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetItem reads the string stored under key.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// SetItem writes value under key.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.redisKey(key), value, s.expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// RemoveItem deletes key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) redisKey(key string) string {
	return s.prefix + key
}
