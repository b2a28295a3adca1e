// Package compression opens decompressing readers for the stream
// compression formats layered under tar archives and single-file
// compressed archives.
package compression

import (
	"compress/bzip2"
	stdgzip "compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Options selects codec variants and resource limits.
type Options struct {
	// AltGzip switches gzip decompression from the standard library to
	// the klauspost decoder.
	AltGzip bool

	// MaxDecoderMemory caps zstd decoder memory. Zero means no limit
	// beyond the decoder's default.
	MaxDecoderMemory uint64
}

// NewReader wraps r with the decompressor for the named format. Format
// names are the conventional short extensions: "gz", "bz2", "xz", "zst",
// "lz4", "br".
func NewReader(format string, r io.Reader, opts Options) (io.ReadCloser, error) {
	switch format {
	case "gz":
		if opts.AltGzip {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, fmt.Errorf("gzip: %w", err)
			}
			return zr, nil
		}
		zr, err := stdgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil

	case "bz2":
		return io.NopCloser(bzip2.NewReader(r)), nil

	case "xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return io.NopCloser(xr), nil

	case "zst":
		var zopts []zstd.DOption
		if opts.MaxDecoderMemory > 0 {
			zopts = append(zopts, zstd.WithDecoderMaxMemory(opts.MaxDecoderMemory))
		}
		zr, err := zstd.NewReader(r, zopts...)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &zstdCloser{zr}, nil

	case "lz4":
		return io.NopCloser(lz4.NewReader(r)), nil

	case "br":
		return io.NopCloser(brotli.NewReader(r)), nil

	default:
		return nil, fmt.Errorf("unknown compression format %q", format)
	}
}

// zstdCloser adapts zstd.Decoder's Close, which returns nothing, to
// io.ReadCloser.
type zstdCloser struct {
	*zstd.Decoder
}

func (z *zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// StripSuffix removes the format's conventional filename suffix, yielding
// the inner file's name for single-file compressed archives. When the name
// has no recognized suffix it is returned unchanged with ok false.
func StripSuffix(format, name string) (string, bool) {
	suffixes := map[string][]string{
		"gz":  {".gz", ".gzip"},
		"bz2": {".bz2", ".bzip2"},
		"xz":  {".xz"},
		"zst": {".zst", ".zstd"},
		"lz4": {".lz4"},
		"br":  {".br"},
	}
	for _, suffix := range suffixes[format] {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			return name[:len(name)-len(suffix)], true
		}
	}
	return name, false
}
