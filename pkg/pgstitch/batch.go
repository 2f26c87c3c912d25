package pgstitch

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgtype"
)

// Cell is one value of a unified row. Valid=false is the null marker used for
// columns a source file does not have; it never collides with real text.
type Cell = pgtype.Text

// NullCell returns the null marker.
func NullCell() Cell { return Cell{} }

// TextCell wraps a present value, including the empty string.
func TextCell(s string) Cell { return Cell{String: s, Valid: true} }

// FileDescriptor describes one input file as discovered from its header.
// Immutable once read.
type FileDescriptor struct {
	Path      string
	Columns   []string
	SizeBytes int64
}

// PresenceMatrix records, for every readable file and every column of the
// global union, whether the file carries the column.
//
// Columns is the ordered union (first-seen order). Present[i][j] is true when
// Files[i] has Columns[j].
type PresenceMatrix struct {
	Columns []string
	Files   []FileDescriptor
	Present [][]bool
}

// Has reports whether file i carries the named column.
func (m *PresenceMatrix) Has(file int, column string) bool {
	j := slices.Index(m.Columns, column)
	if j < 0 || file < 0 || file >= len(m.Present) {
		return false
	}
	return m.Present[file][j]
}

// AllEqual reports whether every file has exactly the union's columns.
func (m *PresenceMatrix) AllEqual() bool {
	for _, row := range m.Present {
		if slices.Contains(row, false) {
			return false
		}
	}
	return true
}

// CommonColumns returns the columns present in every file, in union order.
func (m *PresenceMatrix) CommonColumns() []string {
	var out []string
	for j, col := range m.Columns {
		common := true
		for i := range m.Present {
			if !m.Present[i][j] {
				common = false
				break
			}
		}
		if common {
			out = append(out, col)
		}
	}
	return out
}

// PartialColumns returns the columns missing from at least one file, in union order.
func (m *PresenceMatrix) PartialColumns() []string {
	var out []string
	for j, col := range m.Columns {
		for i := range m.Present {
			if !m.Present[i][j] {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// MissingColumns returns the union columns file i does not have.
func (m *PresenceMatrix) MissingColumns(file int) []string {
	if file < 0 || file >= len(m.Present) {
		return nil
	}
	var out []string
	for j, ok := range m.Present[file] {
		if !ok {
			out = append(out, m.Columns[j])
		}
	}
	return out
}

// UnifiedBatch is a bounded chunk of rows from one source file, reindexed to
// the run's column set. Rows[r][c] is the value of Columns[c].
type UnifiedBatch struct {
	// Source is the path of the originating file.
	Source string
	// FileIndex is the position of Source among the run's readable files.
	FileIndex int
	// Chunk is the zero-based chunk ordinal within Source.
	Chunk int
	// Sequence is the zero-based batch ordinal across the whole run.
	Sequence int

	Columns []string
	Rows    [][]Cell
}

// Len returns the number of rows in the batch.
func (b *UnifiedBatch) Len() int { return len(b.Rows) }

// ColumnIndex returns the position of column, or -1.
func (b *UnifiedBatch) ColumnIndex(column string) int {
	return slices.Index(b.Columns, column)
}

// Value returns the cell at row for column. ok is false when the column is
// not part of the batch.
func (b *UnifiedBatch) Value(row int, column string) (Cell, bool) {
	j := b.ColumnIndex(column)
	if j < 0 || row < 0 || row >= len(b.Rows) {
		return Cell{}, false
	}
	return b.Rows[row][j], true
}

// Validate checks that every row is aligned with Columns.
func (b *UnifiedBatch) Validate() error {
	for r, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return fmt.Errorf("batch %d (%s) row %d has %d values for %d columns",
				b.Sequence, b.Source, r, len(row), len(b.Columns))
		}
	}
	return nil
}

// Transform maps one batch to another. It runs once per batch after
// reindexing and before loading. Every batch of a run must come out with the
// same column set.
type Transform func(*UnifiedBatch) (*UnifiedBatch, error)

// ChainTransforms composes transforms left to right, skipping nil entries.
// Returns nil when there is nothing to apply.
func ChainTransforms(transforms ...Transform) Transform {
	var active []Transform
	for _, t := range transforms {
		if t != nil {
			active = append(active, t)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(b *UnifiedBatch) (*UnifiedBatch, error) {
		var err error
		for _, t := range active {
			if b, err = t(b); err != nil {
				return nil, err
			}
		}
		return b, nil
	}
}

// BatchSource yields column-uniform batches in order.
//
// Next returns io.EOF once the source is exhausted. Columns reports the
// column set the source was built for; it is used when a source produces no
// batches at all.
type BatchSource interface {
	Columns() []string
	Next(ctx context.Context) (*UnifiedBatch, error)
	Close() error
}
