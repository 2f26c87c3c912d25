package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// parquetWriterParallelism is the marshal parallelism of the parquet writer.
const parquetWriterParallelism = 4

// Schema tags are comma and equals separated, so those characters (and
// anything else outside this set) are replaced in field names.
var unsafeFieldChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ParquetSink writes batches to a Parquet file through the JSON writer of
// xitongsys/parquet-go.
type ParquetSink struct {
	columns []string
	fields  []string
	pf      source.ParquetFile
	pw      *writer.JSONWriter
}

// CreateParquetFile creates path and returns a sink writing to it.
func CreateParquetFile(path string, columns []string) (*ParquetSink, error) {
	pf, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	sink, err := NewParquetSink(pf, columns)
	if err != nil {
		pf.Close()
		return nil, err
	}
	return sink, nil
}

// NewParquetSink writes to pf. Close finishes the file and closes pf.
func NewParquetSink(pf source.ParquetFile, columns []string) (*ParquetSink, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("parquet output needs at least one column: %w", pgstitch.ErrInvalidConfig)
	}
	fields := ParquetFieldNames(columns)
	pw, err := writer.NewJSONWriter(parquetSchema(fields), pf, parquetWriterParallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	return &ParquetSink{columns: slices.Clone(columns), fields: fields, pf: pf, pw: pw}, nil
}

// ParquetFieldNames maps column names to unique Parquet field names.
func ParquetFieldNames(columns []string) []string {
	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	for i, c := range columns {
		name := unsafeFieldChars.ReplaceAllString(c, "_")
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			name = "c_" + name
		}
		base := name
		for n := 2; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func parquetSchema(fields []string) string {
	defs := make([]map[string]string, len(fields))
	for i, f := range fields {
		defs[i] = map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", f),
		}
	}
	b, _ := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": defs,
	})
	return string(b)
}

func (s *ParquetSink) Columns() []string { return s.columns }

func (s *ParquetSink) Write(b *pgstitch.UnifiedBatch) error {
	rec := make(map[string]any, len(s.fields))
	for _, row := range b.Rows {
		for i, cell := range row {
			if cell.Valid {
				rec[s.fields[i]] = cell.String
			} else {
				rec[s.fields[i]] = nil
			}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := s.pw.Write(string(data)); err != nil {
			return err
		}
	}
	return nil
}

func (s *ParquetSink) Close() error {
	err := s.pw.WriteStop()
	if cerr := s.pf.Close(); err == nil {
		err = cerr
	}
	return err
}
