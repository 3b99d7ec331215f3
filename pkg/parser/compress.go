package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies how a trace file is stored on disk.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionGzip
)

func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	default:
		return "none"
	}
}

// DetectCompression infers the compression from the file extension.
func DetectCompression(path string) Compression {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".gz"):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// OpenTrace opens a trace file, decompressing it when the extension says so.
func OpenTrace(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening trace file %s: %w", path, err)
	}

	switch DetectCompression(path) {
	case CompressionZstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		return &stackedReader{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			f.Close,
		}}, nil

	case CompressionGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil

	default:
		return f, nil
	}
}

// stackedReader closes a decompressor and its underlying file in order.
type stackedReader struct {
	io.Reader
	closers []func() error
}

func (r *stackedReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
