package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/discochess/tiercache"
	"github.com/discochess/tiercache/internal/config"
	"github.com/discochess/tiercache/internal/stats"
	"github.com/discochess/tiercache/internal/stats/logger"
	"github.com/discochess/tiercache/internal/store"
	"github.com/discochess/tiercache/internal/store/cachedstore"
	"github.com/discochess/tiercache/internal/store/cachedstore/cachestrategy/lru"
	"github.com/discochess/tiercache/internal/store/cachedstore/memory"
	"github.com/discochess/tiercache/internal/store/diskstore"
	"github.com/discochess/tiercache/internal/store/gcsstore"
	"github.com/discochess/tiercache/internal/store/redisstore"
	"github.com/discochess/tiercache/internal/store/s3store"
)

func newLogger(c *config.Config) (*zap.Logger, error) {
	if !c.Verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// openHost opens the configured session host store. Remote backends are
// wrapped in an in-process read cache.
func openHost(ctx context.Context, c *config.Config, collector stats.Collector) (store.Store, error) {
	switch c.Backend {
	case config.BackendDisk:
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		st, err := diskstore.New(c.DataDir, diskstore.WithExclusiveLock())
		if err != nil {
			return nil, fmt.Errorf("opening data directory: %w", err)
		}
		return st, nil

	case config.BackendS3:
		opts := []s3store.Option{s3store.WithPrefix(c.S3.Prefix)}
		if c.S3.Region != "" {
			opts = append(opts, s3store.WithRegion(c.S3.Region))
		}
		if c.S3.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(c.S3.Endpoint))
		}
		st, err := s3store.New(ctx, c.S3.Bucket, opts...)
		if err != nil {
			return nil, fmt.Errorf("opening S3 store: %w", err)
		}
		return withReadCache(st, c.Cache.ReadCacheSize, collector)

	case config.BackendGCS:
		st, err := gcsstore.New(ctx, c.GCS.Bucket, gcsstore.WithPrefix(c.GCS.Prefix))
		if err != nil {
			return nil, fmt.Errorf("opening GCS store: %w", err)
		}
		return withReadCache(st, c.Cache.ReadCacheSize, collector)

	case config.BackendRedis:
		st, err := redisstore.New(ctx, c.Redis.Address, c.Redis.Password, c.Redis.DB,
			redisstore.WithPrefix(c.Redis.Prefix),
			redisstore.WithSessionExpiry(c.Redis.SessionExpiry),
		)
		if err != nil {
			return nil, fmt.Errorf("opening Redis store: %w", err)
		}
		return withReadCache(st, c.Cache.ReadCacheSize, collector)

	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func withReadCache(st store.Store, size int, collector stats.Collector) (store.Store, error) {
	if size == 0 {
		return st, nil
	}
	strategy, err := lru.New(size)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating LRU strategy: %w", err)
	}
	return cachedstore.New(st, memory.New(strategy, collector), cachedstore.WithNegativeCaching(true)), nil
}

// session bundles a cache with the host store it owns.
type session struct {
	cache *tiercache.Cache[string]
	host  store.Store
}

// openSession opens the configured host store and a string cache on top
// of it.
func openSession(ctx context.Context, c *config.Config) (*session, error) {
	log, err := newLogger(c)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	var collector stats.Collector = stats.NewNoop()
	if c.Verbose {
		collector = logger.New(log.Named("tiercache.stats"))
	}

	host, err := openHost(ctx, c, collector)
	if err != nil {
		return nil, err
	}

	opts, err := c.CacheOptions()
	if err != nil {
		host.Close()
		return nil, err
	}
	opts = append(opts,
		tiercache.WithSessionStore(host),
		tiercache.WithLogger(log),
		tiercache.WithStats(collector),
		// One-shot commands sweep explicitly.
		tiercache.WithCleanupInterval(0),
	)

	cache, err := tiercache.New[string](opts...)
	if err != nil {
		host.Close()
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &session{cache: cache, host: host}, nil
}

// Close closes the cache, which persists the session index, then the host.
func (s *session) Close() error {
	cerr := s.cache.Close()
	herr := s.host.Close()
	if cerr != nil {
		return cerr
	}
	return herr
}
