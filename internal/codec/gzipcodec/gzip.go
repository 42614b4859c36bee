// Package gzipcodec compresses session payloads with gzip.
package gzipcodec

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/discochess/tiercache/internal/codec"
)

var _ codec.Codec = (*Codec)(nil)

// Codec compresses payloads with gzip at a fixed level.
type Codec struct {
	level int
}

// Option configures a Codec.
type Option func(*Codec)

// WithLevel sets the compression level, from gzip.HuffmanOnly to
// gzip.BestCompression. The default is gzip.BestSpeed.
func WithLevel(level int) Option {
	return func(c *Codec) {
		c.level = level
	}
}

// New returns a gzip codec.
func New(opts ...Option) *Codec {
	c := &Codec{level: gzip.BestSpeed}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Level returns the configured compression level.
func (c *Codec) Level() int {
	return c.level
}

// Reader wraps r to decompress gzip data.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// Writer wraps w to compress data at the configured level.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	zw, err := gzip.NewWriterLevel(w, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip level %d: %w", c.level, err)
	}
	return zw, nil
}

// Extension returns "gz".
func (c *Codec) Extension() string {
	return "gz"
}

// Name returns "gzip".
func (c *Codec) Name() string {
	return "gzip"
}
