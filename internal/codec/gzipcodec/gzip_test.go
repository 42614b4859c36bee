package gzipcodec

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"
)

func TestCodec_Defaults(t *testing.T) {
	c := New()
	if c.Name() != "gzip" || c.Extension() != "gz" {
		t.Errorf("Name/Extension = %q/%q, want gzip/gz", c.Name(), c.Extension())
	}
	if c.Level() != gzip.BestSpeed {
		t.Errorf("Level() = %d, want %d", c.Level(), gzip.BestSpeed)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	envelope := []byte(`{"v":{"sku":"sku-1","title":"Trail shoe"},"c":1700000000,"t":60000000000,"k":"product"}`)

	tests := []struct {
		name  string
		level int
		data  []byte
	}{
		{"envelope default level", gzip.BestSpeed, envelope},
		{"envelope best compression", gzip.BestCompression, envelope},
		{"huffman only", gzip.HuffmanOnly, envelope},
		{"repetitive", gzip.DefaultCompression, bytes.Repeat(envelope, 500)},
		{"empty", gzip.BestSpeed, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(WithLevel(tt.level))

			var compressed bytes.Buffer
			w, err := c.Writer(&compressed)
			if err != nil {
				t.Fatalf("Writer() error = %v", err)
			}
			if _, err := w.Write(tt.data); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			r, err := c.Reader(&compressed)
			if err != nil {
				t.Fatalf("Reader() error = %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			r.Close()

			if !bytes.Equal(got, tt.data) {
				t.Errorf("round trip = %q, want %q", got, tt.data)
			}
		})
	}
}

func TestCodec_CompressesRepetitivePayloads(t *testing.T) {
	c := New()
	original := bytes.Repeat([]byte(`{"sku":"sku-1"}`), 1000)

	var compressed bytes.Buffer
	w, _ := c.Writer(&compressed)
	w.Write(original)
	w.Close()

	if compressed.Len() >= len(original) {
		t.Errorf("compressed %d bytes to %d, want smaller", len(original), compressed.Len())
	}
}

func TestCodec_Writer_InvalidLevel(t *testing.T) {
	c := New(WithLevel(42))
	if _, err := c.Writer(io.Discard); err == nil {
		t.Error("Writer() expected error for invalid level")
	}
}

func TestCodec_Reader_InvalidData(t *testing.T) {
	if _, err := New().Reader(bytes.NewReader([]byte("not gzip data"))); err == nil {
		t.Error("Reader() expected error for invalid gzip data")
	}
}
