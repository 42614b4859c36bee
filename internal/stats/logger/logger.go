// Package logger provides a stats collector that writes metrics to a zap
// logger, for debugging a cache without a metrics backend.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/discochess/tiercache/internal/stats"
)

var _ stats.Collector = (*Collector)(nil)

// Collector logs each metric update as one entry.
type Collector struct {
	logger *zap.Logger
	level  zapcore.Level
}

// Option configures a Collector.
type Option func(*Collector)

// WithLevel sets the level metric entries are logged at. Default: debug.
func WithLevel(l zapcore.Level) Option {
	return func(c *Collector) {
		c.level = l
	}
}

// New creates a collector writing to logger.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{logger: logger, level: zapcore.DebugLevel}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IncCounter logs a counter increment. Zero deltas are dropped.
func (c *Collector) IncCounter(name, label string, delta int64) {
	if delta == 0 {
		return
	}
	if ce := c.logger.Check(c.level, "counter"); ce != nil {
		ce.Write(zap.String("metric", name), labelField(name, label), zap.Int64("delta", delta))
	}
}

// SetGauge logs a gauge value.
func (c *Collector) SetGauge(name, label string, value int64) {
	if ce := c.logger.Check(c.level, "gauge"); ce != nil {
		ce.Write(zap.String("metric", name), labelField(name, label), zap.Int64("value", value))
	}
}

// ObserveHistogram logs a histogram observation.
func (c *Collector) ObserveHistogram(name, label string, value float64) {
	if ce := c.logger.Check(c.level, "histogram"); ce != nil {
		ce.Write(zap.String("metric", name), labelField(name, label), zap.Float64("value", value))
	}
}

// labelField names the label after what it holds: an operation for
// durations, a cache level otherwise.
func labelField(name, label string) zap.Field {
	if name == stats.MetricOpDuration {
		return zap.String("operation", label)
	}
	return zap.String("level", label)
}
