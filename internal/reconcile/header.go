package reconcile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vvka-141/pgstitch/internal/files/filesystem"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

const utf8BOM = "\ufeff"

var errEmptyHeader = errors.New("file has no header row")

// newCSVReader configures encoding/csv for one input stream. Rows may have a
// different field count from the header; that is checked while reindexing so
// the error can name the file and line.
func newCSVReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	return cr
}

// readHeader stats and opens one file and reads its header row.
// The rename map is applied to the header before duplicates are checked.
func (r *Reconciler) readHeader(ctx context.Context, path string) (pgstitch.FileDescriptor, error) {
	desc := pgstitch.FileDescriptor{Path: path}

	info, err := r.fsProvider.Stat(ctx, path)
	if err != nil {
		return desc, err
	}
	if info.IsDir() {
		return desc, fmt.Errorf("is a directory")
	}
	desc.SizeBytes = info.Size()

	rc, err := filesystem.OpenDecompressed(ctx, r.fsProvider, path)
	if err != nil {
		return desc, err
	}
	defer rc.Close()

	cols, err := parseHeader(newCSVReader(rc, r.opts.Delimiter), r.opts.Rename)
	if err != nil {
		return desc, err
	}
	desc.Columns = cols
	return desc, nil
}

// parseHeader reads the first record of cr as column names.
func parseHeader(cr *csv.Reader, rename map[string]string) ([]string, error) {
	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmptyHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	record[0] = strings.TrimPrefix(record[0], utf8BOM)
	if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
		return nil, errEmptyHeader
	}

	cols := make([]string, len(record))
	seen := make(map[string]int, len(record))
	for i, name := range record {
		if to, ok := rename[name]; ok {
			name = to
		}
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column %q at positions %d and %d", name, prev+1, i+1)
		}
		seen[name] = i
		cols[i] = name
	}
	return cols, nil
}
