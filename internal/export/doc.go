// Package export writes reconciled batches to files instead of a database.
//
// Sinks:
//   - CSVSink: delimited text; a null cell becomes an empty field
//   - ParquetSink: every column OPTIONAL BYTE_ARRAY (UTF8), nulls preserved,
//     Snappy compressed
package export
