// Package files provides input-file access organized into sub-packages:
//   - filesystem: Provider abstraction over local disk, memory and S3-compatible object stores
//   - scanner: expands CLI arguments (files, directories, globs) into an ordered file list
//
// # Usage
//
//	provider := filesystem.NewRouter(filesystem.NewOSFileSystem())
//	paths, err := scanner.New(provider).Expand(ctx, []string{"data/", "extra/*.csv.gz"})
package files
