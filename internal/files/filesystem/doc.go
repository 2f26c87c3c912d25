// Package filesystem abstracts read access to input files.
//
// Implementations:
//   - OSFileSystem: local disk
//   - MemoryFileSystem: in-memory files for tests, with open-file accounting
//   - S3FileSystem: s3://bucket/key objects through minio-go
//   - Router: picks S3FileSystem for s3:// names and a local provider otherwise
//
// OpenDecompressed adds transparent gzip (.gz) and zstd (.zst) decoding.
package filesystem
