// Package disktiercachefx provides an fx module for a cache whose session
// level is persisted in a local directory.
package disktiercachefx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/tiercache"
	"github.com/discochess/tiercache/internal/codec/zstdcodec"
	"github.com/discochess/tiercache/internal/stats"
	"github.com/discochess/tiercache/internal/stats/logger"
	"github.com/discochess/tiercache/internal/store/diskstore"
)

// Config holds configuration for the disk-backed cache.
type Config struct {
	// DataDir is the directory holding the session items. It is created
	// if missing and locked for the lifetime of the cache.
	DataDir string

	// Namespace isolates this cache's items within DataDir.
	// Default is tiercache.DefaultNamespace.
	Namespace string

	// DefaultTTL applies to writes without an explicit TTL.
	// Default is tiercache.DefaultTTL.
	DefaultTTL time.Duration

	// MaxEntries bounds each level. Default is tiercache.DefaultMaxEntries.
	MaxEntries int
}

// Module provides a *tiercache.Cache[V] with memory and session levels.
// Requires a Config and a *zap.Logger to be provided.
func Module[V any]() fx.Option {
	return fx.Module("disktiercache",
		fx.Provide(
			newStatsCollector,
			newCache[V],
		),
	)
}

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("tiercache.stats"))
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided cache.
type Result[V any] struct {
	fx.Out

	Cache *tiercache.Cache[V]
}

func newCache[V any](p Params) (Result[V], error) {
	if p.Config.DataDir == "" {
		return Result[V]{}, errors.New("disktiercachefx: DataDir is required")
	}
	if err := os.MkdirAll(p.Config.DataDir, 0o755); err != nil {
		return Result[V]{}, fmt.Errorf("creating data directory: %w", err)
	}

	host, err := diskstore.New(p.Config.DataDir, diskstore.WithExclusiveLock())
	if err != nil {
		return Result[V]{}, err
	}

	opts := []tiercache.Option{
		tiercache.WithSessionStore(host),
		tiercache.WithCodec(zstdcodec.New()),
		tiercache.WithStats(p.Collector),
		tiercache.WithLogger(p.Logger),
	}
	if p.Config.Namespace != "" {
		opts = append(opts, tiercache.WithNamespace(p.Config.Namespace))
	}
	if p.Config.DefaultTTL > 0 {
		opts = append(opts, tiercache.WithDefaultTTL(p.Config.DefaultTTL))
	}
	if p.Config.MaxEntries > 0 {
		opts = append(opts, tiercache.WithMaxEntries(p.Config.MaxEntries))
	}

	c, err := tiercache.New[V](opts...)
	if err != nil {
		host.Close()
		return Result[V]{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return errors.Join(c.Close(), host.Close())
		},
	})

	return Result[V]{Cache: c}, nil
}
