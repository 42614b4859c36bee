// Package codecs resolves payload codecs by configuration name.
package codecs

import (
	"compress/gzip"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/discochess/tiercache/internal/codec"
	"github.com/discochess/tiercache/internal/codec/gzipcodec"
	"github.com/discochess/tiercache/internal/codec/noopcodec"
	"github.com/discochess/tiercache/internal/codec/zstdcodec"
)

// Names lists the accepted codec names.
var Names = []string{"none", "gzip", "zstd"}

// ByName returns the codec registered under name.
// An empty name selects the no-op codec. A non-zero level selects the
// compression level on the codec's native scale (1-9 for gzip, 1-22 for
// zstd); zero keeps the codec default.
func ByName(name string, level int) (codec.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "noop":
		return noopcodec.New(), nil
	case "gzip", "gz":
		if level == 0 {
			return gzipcodec.New(), nil
		}
		if level < gzip.BestSpeed || level > gzip.BestCompression {
			return nil, fmt.Errorf("gzip level %d out of range [%d, %d]", level, gzip.BestSpeed, gzip.BestCompression)
		}
		return gzipcodec.New(gzipcodec.WithLevel(level)), nil
	case "zstd", "zst":
		if level == 0 {
			return zstdcodec.New(), nil
		}
		if level < 1 || level > 22 {
			return nil, fmt.Errorf("zstd level %d out of range [1, 22]", level)
		}
		return zstdcodec.New(zstdcodec.WithLevel(zstd.EncoderLevelFromZstd(level))), nil
	default:
		return nil, fmt.Errorf("unknown codec %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}
