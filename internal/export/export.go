package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Format selects the output encoding.
type Format int

const (
	FormatCSV Format = iota
	FormatParquet
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// ParseFormat parses "csv" or "parquet". An empty string infers the format
// from path's extension.
func ParseFormat(s, path string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	case "":
		if strings.EqualFold(filepath.Ext(path), ".parquet") {
			return FormatParquet, nil
		}
		return FormatCSV, nil
	}
	return FormatCSV, fmt.Errorf("unknown export format %q (want csv or parquet): %w", s, pgstitch.ErrInvalidConfig)
}

// Sink receives batches with a fixed column set.
type Sink interface {
	Columns() []string
	Write(b *pgstitch.UnifiedBatch) error
	// Close flushes buffered output. The sink is unusable afterwards.
	Close() error
}

// Create opens a sink writing to path. "-" writes CSV to out.
func Create(path string, format Format, columns []string, delim rune, out io.Writer) (Sink, error) {
	if path == "-" {
		if format != FormatCSV {
			return nil, fmt.Errorf("%s output cannot be written to stdout: %w", format, pgstitch.ErrInvalidConfig)
		}
		return NewCSVSink(nopCloser{out}, columns, delim)
	}

	switch format {
	case FormatParquet:
		return CreateParquetFile(path, columns)
	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		sink, err := NewCSVSink(f, columns, delim)
		if err != nil {
			f.Close()
			return nil, err
		}
		return sink, nil
	}
}

// Copy drains src into sink and returns the number of rows written. The
// caller closes both.
func Copy(ctx context.Context, src pgstitch.BatchSource, sink Sink) (int64, error) {
	var rows int64
	for {
		b, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if !slices.Equal(b.Columns, sink.Columns()) {
			return rows, fmt.Errorf("batch %d (%s) has columns %v, output has %v: %w",
				b.Sequence, b.Source, b.Columns, sink.Columns(), pgstitch.ErrSchemaDrift)
		}
		if err := sink.Write(b); err != nil {
			return rows, fmt.Errorf("failed to write batch %d (%s): %w", b.Sequence, b.Source, err)
		}
		rows += int64(b.Len())
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
