// Package scanner expands command-line input arguments into an ordered list
// of delimited-text files.
//
// An argument may be a file, a directory (searched recursively for .csv, .tsv
// and .txt files, optionally .gz or .zst compressed), a glob pattern, or an
// s3:// URL or prefix. Results keep argument order and are de-duplicated.
//
// The scanner is filesystem-agnostic through filesystem.Provider, so tests run
// against an in-memory filesystem.
package scanner
