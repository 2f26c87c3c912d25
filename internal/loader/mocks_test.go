package loader

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// memStore is an in-memory TableStore that records every call.
type memStore struct {
	tables map[string][]string
	rows   map[string][][]pgstitch.Cell
	calls  []string

	columnsErr error
	copyErrAt  int // 1-based CopyRows call that fails; 0 never
	copyCalls  int
	closed     bool
	resolved   string // name ResolveTable reports, when set
}

func newMemStore() *memStore {
	return &memStore{tables: map[string][]string{}, rows: map[string][][]pgstitch.Cell{}}
}

func (s *memStore) ResolveTable(_ context.Context, table string) (string, error) {
	if s.resolved != "" {
		return s.resolved, nil
	}
	return table, nil
}

func (s *memStore) TableColumns(_ context.Context, table string) ([]string, bool, error) {
	s.calls = append(s.calls, "columns "+table)
	if s.columnsErr != nil {
		return nil, false, s.columnsErr
	}
	cols, ok := s.tables[table]
	return slices.Clone(cols), ok, nil
}

func (s *memStore) DropTable(_ context.Context, table string) error {
	s.calls = append(s.calls, "drop "+table)
	delete(s.tables, table)
	delete(s.rows, table)
	return nil
}

func (s *memStore) CreateTable(_ context.Context, table string, columns []string) error {
	s.calls = append(s.calls, "create "+table)
	s.tables[table] = slices.Clone(columns)
	return nil
}

func (s *memStore) CopyRows(_ context.Context, table string, columns []string, rows [][]pgstitch.Cell) (int64, error) {
	s.copyCalls++
	s.calls = append(s.calls, "copy "+table)
	if s.copyErrAt == s.copyCalls {
		return 0, errors.New("ERROR: invalid byte sequence (SQLSTATE 22021)")
	}
	tableCols := s.tables[table]
	for _, row := range rows {
		out := make([]pgstitch.Cell, len(tableCols))
		for i, c := range columns {
			out[slices.Index(tableCols, c)] = row[i]
		}
		s.rows[table] = append(s.rows[table], out)
	}
	return int64(len(rows)), nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

// limitedStore caps identifier length the way a PostgreSQL server does.
type limitedStore struct {
	*memStore
	limit int
}

func (s limitedStore) MaxIdentifierBytes() int { return s.limit }

// sliceSource yields fixed batches.
type sliceSource struct {
	columns []string
	batches []*pgstitch.UnifiedBatch
	pos     int
	err     error // returned after the batches instead of io.EOF
}

func (s *sliceSource) Columns() []string { return s.columns }

func (s *sliceSource) Next(ctx context.Context) (*pgstitch.UnifiedBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.batches) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

func (s *sliceSource) Close() error { return nil }

type stubApprover struct {
	approve bool
	err     error
	asked   []string
}

func (a *stubApprover) RequestApproval(_ context.Context, table string) (bool, error) {
	a.asked = append(a.asked, table)
	return a.approve, a.err
}

func batch(seq int, source string, cols []string, values ...[]string) *pgstitch.UnifiedBatch {
	b := &pgstitch.UnifiedBatch{Source: source, Sequence: seq, Columns: cols}
	for _, v := range values {
		row := make([]pgstitch.Cell, len(v))
		for i, s := range v {
			if s == "<null>" {
				row[i] = pgstitch.NullCell()
			} else {
				row[i] = pgstitch.TextCell(s)
			}
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}
