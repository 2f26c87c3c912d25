package export

import (
	"encoding/csv"
	"io"
	"slices"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// CSVSink writes a header row followed by every batch row.
type CSVSink struct {
	columns []string
	w       *csv.Writer
	out     io.WriteCloser
	record  []string
}

// NewCSVSink writes the header to out immediately. Close closes out.
func NewCSVSink(out io.WriteCloser, columns []string, delim rune) (*CSVSink, error) {
	w := csv.NewWriter(out)
	if delim != 0 {
		w.Comma = delim
	}
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	return &CSVSink{
		columns: slices.Clone(columns),
		w:       w,
		out:     out,
		record:  make([]string, len(columns)),
	}, nil
}

func (s *CSVSink) Columns() []string { return s.columns }

func (s *CSVSink) Write(b *pgstitch.UnifiedBatch) error {
	for _, row := range b.Rows {
		for i, cell := range row {
			s.record[i] = cell.String
		}
		if err := s.w.Write(s.record); err != nil {
			return err
		}
	}
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.out.Close()
		return err
	}
	return s.out.Close()
}
