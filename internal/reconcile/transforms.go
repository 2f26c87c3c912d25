package reconcile

import (
	"fmt"
	"slices"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Constant is a column set to the same value on every row.
type Constant struct {
	Name  string
	Value string
}

// ConstantColumns returns a transform that sets each constant on every row.
// A constant naming an existing column overwrites it; otherwise the column is
// appended after the batch columns, in the given order.
func ConstantColumns(constants []Constant) (pgstitch.Transform, error) {
	if len(constants) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(constants))
	for _, c := range constants {
		if c.Name == "" {
			return nil, fmt.Errorf("constant column name is empty: %w", pgstitch.ErrInvalidConfig)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("constant column %q given twice: %w", c.Name, pgstitch.ErrInvalidConfig)
		}
		seen[c.Name] = true
	}
	constants = slices.Clone(constants)

	return func(b *pgstitch.UnifiedBatch) (*pgstitch.UnifiedBatch, error) {
		cols := slices.Clone(b.Columns)
		target := make([]int, len(constants))
		for i, c := range constants {
			j := slices.Index(cols, c.Name)
			if j < 0 {
				j = len(cols)
				cols = append(cols, c.Name)
			}
			target[i] = j
		}

		rows := make([][]pgstitch.Cell, len(b.Rows))
		for r, row := range b.Rows {
			out := make([]pgstitch.Cell, len(cols))
			copy(out, row)
			for i, c := range constants {
				out[target[i]] = pgstitch.TextCell(c.Value)
			}
			rows[r] = out
		}

		nb := *b
		nb.Columns = cols
		nb.Rows = rows
		return &nb, nil
	}, nil
}

// DropColumns returns a transform that removes the named columns. Unknown
// names are ignored.
func DropColumns(names ...string) pgstitch.Transform {
	if len(names) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	return func(b *pgstitch.UnifiedBatch) (*pgstitch.UnifiedBatch, error) {
		var keep []int
		var cols []string
		for j, c := range b.Columns {
			if !drop[c] {
				keep = append(keep, j)
				cols = append(cols, c)
			}
		}
		rows := make([][]pgstitch.Cell, len(b.Rows))
		for r, row := range b.Rows {
			out := make([]pgstitch.Cell, len(keep))
			for i, j := range keep {
				out[i] = row[j]
			}
			rows[r] = out
		}
		nb := *b
		nb.Columns = cols
		nb.Rows = rows
		return &nb, nil
	}
}
