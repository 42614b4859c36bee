// Package memorytiercachefx provides an fx module for a memory-only cache.
// Useful for testing.
package memorytiercachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/tiercache"
	"github.com/discochess/tiercache/internal/stats"
	"github.com/discochess/tiercache/internal/stats/logger"
)

// Module provides a memory-only *tiercache.Cache[V].
// Requires a *zap.Logger to be provided. An optional []tiercache.Option,
// e.g. from fx.Supply, is applied after the module defaults.
func Module[V any]() fx.Option {
	return fx.Module("memorytiercache",
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

	Logger    *zap.Logger
	Collector stats.Collector
	Options   []tiercache.Option `optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided cache.
type Result[V any] struct {
	fx.Out

	Cache *tiercache.Cache[V]
}

func newCache[V any](p Params) (Result[V], error) {
	opts := append([]tiercache.Option{
		tiercache.WithLevels(tiercache.Memory),
		tiercache.WithStats(p.Collector),
		tiercache.WithLogger(p.Logger),
	}, p.Options...)

	c, err := tiercache.New[V](opts...)
	if err != nil {
		return Result[V]{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return Result[V]{Cache: c}, nil
}
