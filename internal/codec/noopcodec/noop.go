// Package noopcodec stores session payloads uncompressed.
package noopcodec

import (
	"io"

	"github.com/discochess/tiercache/internal/codec"
)

var _ codec.BlockCodec = Codec{}

// Codec passes payloads through unchanged.
type Codec struct{}

// New returns the pass-through codec.
func New() Codec {
	return Codec{}
}

// EncodeBlock appends src to dst.
func (Codec) EncodeBlock(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// DecodeBlock appends src to dst.
func (Codec) DecodeBlock(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// Reader returns r unchanged. Closing it does not close r.
func (Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w unchanged. Closing it does not close w.
func (Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// Extension returns "".
func (Codec) Extension() string {
	return ""
}

// Name returns "none".
func (Codec) Name() string {
	return "none"
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
