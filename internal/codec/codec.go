// Package codec compresses the payloads the session level writes to its
// host store.
package codec

import (
	"bytes"
	"fmt"
	"io"
)

// Codec compresses and decompresses payload streams.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the conventional file extension without dot
	// (e.g., "zst", "gz"), or "" when payloads are stored as is.
	Extension() string
	// Name returns the codec name used in configuration (e.g., "zstd").
	Name() string
}

// BlockCodec is implemented by codecs that can compress a whole payload
// in one call without setting up a stream.
type BlockCodec interface {
	Codec
	// EncodeBlock appends the compressed form of src to dst.
	EncodeBlock(dst, src []byte) ([]byte, error)
	// DecodeBlock appends the decompressed form of src to dst.
	DecodeBlock(dst, src []byte) ([]byte, error)
}

// Encode compresses a complete payload with c.
func Encode(c Codec, data []byte) ([]byte, error) {
	if bc, ok := c.(BlockCodec); ok {
		out, err := bc.EncodeBlock(nil, data)
		if err != nil {
			return nil, fmt.Errorf("codec %s: encode: %w", c.Name(), err)
		}
		return out, nil
	}

	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		return nil, fmt.Errorf("codec %s: open writer: %w", c.Name(), err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("codec %s: write: %w", c.Name(), err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec %s: close writer: %w", c.Name(), err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses a complete payload with c.
func Decode(c Codec, data []byte) ([]byte, error) {
	if bc, ok := c.(BlockCodec); ok {
		out, err := bc.DecodeBlock(nil, data)
		if err != nil {
			return nil, fmt.Errorf("codec %s: decode: %w", c.Name(), err)
		}
		return out, nil
	}

	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("codec %s: open reader: %w", c.Name(), err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec %s: read: %w", c.Name(), err)
	}
	return out, nil
}
