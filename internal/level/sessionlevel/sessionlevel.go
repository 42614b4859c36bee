// Package sessionlevel implements the session-scoped cache level on top of
// a text key/value host store.
//
// Each entry is persisted as a JSON envelope holding the encoded value and
// its metadata. The envelope is compressed by the payload codec and then
// base64 encoded so the host only ever sees text. A key index is kept in
// the host under "<namespace>:__index" so a new Store can pick up the
// entries left by a previous one. Mutations mark the index dirty and Flush
// writes it, so a batch of writes costs one index write.
package sessionlevel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/tiercache/internal/clock"
	"github.com/discochess/tiercache/internal/codec"
	"github.com/discochess/tiercache/internal/codec/noopcodec"
	"github.com/discochess/tiercache/internal/entry"
	"github.com/discochess/tiercache/internal/level"
	"github.com/discochess/tiercache/internal/store"
)

// DefaultNamespace prefixes host keys when no namespace is configured.
const DefaultNamespace = "tiercache"

// reloadConcurrency bounds host reads while verifying the index in Open.
const reloadConcurrency = 8

// Option configures a Store.
type Option func(*options)

type options struct {
	namespace string
	values    ValueCodec
	payload   codec.Codec
	clock     clock.Clock
	logger    *zap.Logger
}

// WithNamespace sets the prefix of every host key.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithValueCodec sets the codec used for cached values. Defaults to JSON.
func WithValueCodec(c ValueCodec) Option {
	return func(o *options) {
		o.values = c
	}
}

// WithCodec sets the payload compression codec. Defaults to none.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.payload = c
	}
}

// WithClock sets the clock used to stamp accesses.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// envelope is the persisted form of one entry.
type envelope struct {
	Value          []byte    `json:"value"`
	SizeBytes      int64     `json:"size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	TTL            int64     `json:"ttl_ns"`
	Kind           string    `json:"kind,omitempty"`
	AccessCount    int64     `json:"access_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Seq            uint64    `json:"seq"`
}

// meta is the resident metadata of one entry. The value stays in the host.
type meta = entry.Entry[struct{}]

// index is the persisted key index.
type index struct {
	Seq     uint64           `json:"seq"`
	Entries map[string]*meta `json:"entries"`
}

// Store is a level.Store persisted through a store.Store host.
// The host is not closed by Close; its owner closes it.
type Store[V any] struct {
	host    store.Store
	opts    options
	itemPfx string
	idxKey  string

	mu    sync.Mutex
	items map[string]*meta
	size  int64
	seq   uint64
	dirty bool
}

// Compile-time checks.
var (
	_ level.Store[int] = (*Store[int])(nil)
	_ level.Flusher    = (*Store[int])(nil)
)

// Open creates a Store over host and rebuilds its index from a previous
// session, if any. Indexed entries whose host item has disappeared are
// dropped.
func Open[V any](ctx context.Context, host store.Store, opts ...Option) (*Store[V], error) {
	if host == nil {
		return nil, errors.New("sessionlevel: host store is nil")
	}
	o := options{
		namespace: DefaultNamespace,
		values:    JSON(),
		payload:   noopcodec.New(),
		clock:     clock.Real(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[V]{
		host:    host,
		opts:    o,
		itemPfx: o.namespace + ":item:",
		idxKey:  o.namespace + ":__index",
		items:   make(map[string]*meta),
	}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store[V]) reload(ctx context.Context) error {
	raw, err := s.host.GetItem(ctx, s.idxKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sessionlevel: read index: %w: %w", level.ErrHostStorage, err)
	}

	var idx index
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		// A corrupt index only loses the previous session.
		s.opts.logger.Warn("discarding unreadable session index", zap.Error(err))
		return nil
	}

	keys := make([]string, 0, len(idx.Entries))
	for k := range idx.Entries {
		keys = append(keys, k)
	}
	present := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reloadConcurrency)
	for i, k := range keys {
		g.Go(func() error {
			_, err := s.host.GetItem(gctx, s.itemPfx+k)
			switch {
			case err == nil:
				present[i] = true
			case errors.Is(err, store.ErrNotFound):
			default:
				return fmt.Errorf("sessionlevel: verify %q: %w: %w", k, level.ErrHostStorage, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.seq = idx.Seq
	dropped := 0
	for i, k := range keys {
		m := idx.Entries[k]
		if !present[i] || m == nil {
			dropped++
			continue
		}
		s.items[k] = m
		s.size += m.SizeBytes
		if m.Seq > s.seq {
			s.seq = m.Seq
		}
	}
	s.opts.logger.Debug("session index reloaded",
		zap.Int("entries", len(s.items)),
		zap.Int("dropped", dropped),
	)
	if dropped > 0 {
		s.dirty = true
		return s.flushLocked(ctx)
	}
	return nil
}

// Level returns level.Session.
func (s *Store[V]) Level() level.Level { return level.Session }

// Get loads and decodes the entry for key, then records the access.
// A host item that vanished is reported as a miss and dropped from the
// index. An item that cannot be decoded is removed and reported as a
// serialization failure.
func (s *Store[V]) Get(ctx context.Context, key string) (*entry.Entry[V], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}

	raw, err := s.host.GetItem(ctx, s.itemPfx+key)
	if errors.Is(err, store.ErrNotFound) {
		s.forgetLocked(key)
		if err := s.flushLocked(ctx); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sessionlevel: get %q: %w: %w", key, level.ErrHostStorage, err)
	}

	v, err := s.decode(raw)
	if err != nil {
		errs := []error{fmt.Errorf("sessionlevel: decode %q: %w: %w", key, level.ErrSerialization, err)}
		if err := s.host.RemoveItem(ctx, s.itemPfx+key); err != nil {
			errs = append(errs, fmt.Errorf("sessionlevel: remove %q: %w: %w", key, level.ErrHostStorage, err))
		}
		s.forgetLocked(key)
		if err := s.flushLocked(ctx); err != nil {
			errs = append(errs, err)
		}
		return nil, false, errors.Join(errs...)
	}

	m.Touch(s.opts.clock.Now())
	s.dirty = true
	e := fromMeta[V](m)
	e.Value = v
	return e, true, nil
}

// Put encodes e and writes it to the host, replacing any previous entry.
// Nothing changes when encoding or the host write fails. The index is
// written by the next Flush.
func (s *Store[V]) Put(ctx context.Context, key string, e *entry.Entry[V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq + 1
	raw, err := s.encode(e, seq)
	if err != nil {
		return fmt.Errorf("sessionlevel: encode %q: %w: %w", key, level.ErrSerialization, err)
	}
	if err := s.host.SetItem(ctx, s.itemPfx+key, raw); err != nil {
		return fmt.Errorf("sessionlevel: set %q: %w: %w", key, level.ErrHostStorage, err)
	}

	s.seq = seq
	e.Seq = seq
	if old, ok := s.items[key]; ok {
		s.size -= old.SizeBytes
	}
	s.items[key] = &meta{
		SizeBytes: e.SizeBytes,
		CreatedAt: e.CreatedAt,
		TTL:       e.TTL,
		Meta:      e.Meta,
		Seq:       seq,
	}
	s.size += e.SizeBytes
	s.dirty = true
	return nil
}

// Remove deletes key from the host and the in-memory index.
func (s *Store[V]) Remove(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return false, nil
	}
	if err := s.host.RemoveItem(ctx, s.itemPfx+key); err != nil {
		return false, fmt.Errorf("sessionlevel: remove %q: %w: %w", key, level.ErrHostStorage, err)
	}
	s.forgetLocked(key)
	return true, nil
}

// RemoveFunc deletes key if pred accepts its resident metadata. Value is
// left unset when pred runs.
func (s *Store[V]) RemoveFunc(ctx context.Context, key string, pred func(e *entry.Entry[V]) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.items[key]
	if !ok || !pred(fromMeta[V](m)) {
		return false, nil
	}
	if err := s.host.RemoveItem(ctx, s.itemPfx+key); err != nil {
		return false, fmt.Errorf("sessionlevel: remove %q: %w: %w", key, level.ErrHostStorage, err)
	}
	s.forgetLocked(key)
	return true, nil
}

// Clear removes every indexed item and the index itself.
func (s *Store[V]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for k := range s.items {
		if err := s.host.RemoveItem(ctx, s.itemPfx+k); err != nil {
			errs = append(errs, err)
			continue
		}
		s.forgetLocked(k)
	}
	if len(errs) > 0 {
		err := fmt.Errorf("sessionlevel: clear: %w: %w", level.ErrHostStorage, errors.Join(errs...))
		// Keep the index consistent with what is still in the host.
		return errors.Join(err, s.flushLocked(ctx))
	}
	if err := s.host.RemoveItem(ctx, s.idxKey); err != nil {
		return fmt.Errorf("sessionlevel: clear index: %w: %w", level.ErrHostStorage, err)
	}
	s.items = make(map[string]*meta)
	s.size = 0
	s.dirty = false
	return nil
}

// ForEach calls fn with the metadata of each resident entry. Value is left
// at its zero value; it stays in the host until read with Get.
func (s *Store[V]) ForEach(ctx context.Context, fn func(key string, e *entry.Entry[V]) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, m := range s.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k, fromMeta[V](m)) {
			break
		}
	}
	return nil
}

// SizeBytes returns the total estimated size of indexed entries.
func (s *Store[V]) SizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Len returns the number of indexed entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Flush writes the index to the host if it changed since the last
// successful write. A failed write leaves the index dirty.
func (s *Store[V]) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Close flushes the index so access metadata survives into the next
// session. The host store is left open.
func (s *Store[V]) Close() error {
	return s.Flush(context.Background())
}

func fromMeta[V any](m *meta) *entry.Entry[V] {
	return &entry.Entry[V]{
		SizeBytes: m.SizeBytes,
		CreatedAt: m.CreatedAt,
		TTL:       m.TTL,
		Meta:      m.Meta,
		Seq:       m.Seq,
	}
}

func (s *Store[V]) forgetLocked(key string) {
	if m, ok := s.items[key]; ok {
		s.size -= m.SizeBytes
		delete(s.items, key)
		s.dirty = true
	}
}

func (s *Store[V]) flushLocked(ctx context.Context) error {
	if !s.dirty {
		return nil
	}
	data, err := json.Marshal(index{Seq: s.seq, Entries: s.items})
	if err != nil {
		return fmt.Errorf("sessionlevel: encode index: %w: %w", level.ErrSerialization, err)
	}
	if err := s.host.SetItem(ctx, s.idxKey, string(data)); err != nil {
		return fmt.Errorf("sessionlevel: write index: %w: %w", level.ErrHostStorage, err)
	}
	s.dirty = false
	return nil
}

func (s *Store[V]) encode(e *entry.Entry[V], seq uint64) (string, error) {
	value, err := s.opts.values.Marshal(e.Value)
	if err != nil {
		return "", err
	}
	env, err := json.Marshal(envelope{
		Value:          value,
		SizeBytes:      e.SizeBytes,
		CreatedAt:      e.CreatedAt,
		TTL:            int64(e.TTL),
		Kind:           e.Meta.Kind,
		AccessCount:    e.Meta.AccessCount,
		LastAccessedAt: e.Meta.LastAccessedAt,
		Seq:            seq,
	})
	if err != nil {
		return "", err
	}
	packed, err := codec.Encode(s.opts.payload, env)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(packed), nil
}

func (s *Store[V]) decode(raw string) (V, error) {
	var zero V
	packed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return zero, err
	}
	data, err := codec.Decode(s.opts.payload, packed)
	if err != nil {
		return zero, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, err
	}
	var v V
	if err := s.opts.values.Unmarshal(env.Value, &v); err != nil {
		return zero, err
	}
	return v, nil
}
