package filesystem

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FileInfo is an alias for fs.FileInfo.
type FileInfo = fs.FileInfo

// Provider gives read access to input files. Paths are provider-specific:
// OS paths, slash paths for the memory provider, s3://bucket/key for S3.
type Provider interface {
	// Open streams the raw bytes of a file. The caller must Close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Stat returns file information.
	Stat(ctx context.Context, name string) (FileInfo, error)

	// List returns every regular file below dir, recursively, in lexical order.
	List(ctx context.Context, dir string) ([]string, error)
}

// Compression identifies a transparent decompression applied on open.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// DetectCompression infers compression from the file extension.
func DetectCompression(name string) Compression {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".gzip"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return CompressionZstd
	}
	return CompressionNone
}

// StripCompressionExt removes a recognized compression suffix.
func StripCompressionExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".gzip", ".gz", ".zstd", ".zst"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// OpenDecompressed opens name through p and wraps it in a decompressor
// chosen by extension.
func OpenDecompressed(ctx context.Context, p Provider, name string) (io.ReadCloser, error) {
	raw, err := p.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	switch DetectCompression(name) {
	case CompressionGzip:
		gz, err := gzip.NewReader(raw)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("invalid gzip stream: %w", err)
		}
		return &stackedReader{Reader: gz, closers: []io.Closer{gz, raw}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(raw, zstd.WithDecoderConcurrency(1))
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("invalid zstd stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zstdCloser{zr}, raw}}, nil
	}
	return raw, nil
}

// stackedReader closes a decompressor and then its source.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
