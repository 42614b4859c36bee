// Package zstdcodec compresses session payloads with zstd.
package zstdcodec

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/discochess/tiercache/internal/codec"
)

var _ codec.BlockCodec = (*Codec)(nil)

// DefaultMaxDecodedSize bounds the decoded size of a single payload.
const DefaultMaxDecodedSize = 64 << 20

// Codec compresses payloads with zstd.
// Whole payloads go through a shared encoder and decoder, which are safe
// for concurrent EncodeAll and DecodeAll calls.
type Codec struct {
	level      zstd.EncoderLevel
	maxDecoded uint64

	once    sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	initErr error
}

// Option configures a Codec.
type Option func(*Codec)

// WithLevel sets the encoder level. The default is zstd.SpeedFastest.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(c *Codec) {
		c.level = level
	}
}

// WithMaxDecodedSize bounds how large a single decoded payload may be.
// Larger payloads fail to decode.
func WithMaxDecodedSize(n uint64) Option {
	return func(c *Codec) {
		c.maxDecoded = n
	}
}

// New returns a zstd codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		level:      zstd.SpeedFastest,
		maxDecoded: DefaultMaxDecodedSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) init() error {
	c.once.Do(func() {
		c.enc, c.initErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(c.level),
			zstd.WithEncoderConcurrency(1),
		)
		if c.initErr != nil {
			return
		}
		c.dec, c.initErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(c.maxDecoded),
		)
	})
	return c.initErr
}

// EncodeBlock appends the zstd frame for src to dst.
func (c *Codec) EncodeBlock(dst, src []byte) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(src, dst), nil
}

// DecodeBlock appends the decompressed contents of the frame in src to dst.
func (c *Codec) DecodeBlock(dst, src []byte) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.dec.DecodeAll(src, dst)
}

// Reader wraps r to decompress a zstd stream.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(c.maxDecoded))
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// Writer wraps w to compress a zstd stream at the configured level.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(c.level))
}

// Extension returns "zst".
func (c *Codec) Extension() string {
	return "zst"
}

// Name returns "zstd".
func (c *Codec) Name() string {
	return "zstd"
}
