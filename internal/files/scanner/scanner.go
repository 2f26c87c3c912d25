package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/vvka-141/pgstitch/internal/files/filesystem"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// DataExtensions are the file suffixes picked up when a directory is expanded.
var DataExtensions = []string{".csv", ".tsv", ".txt"}

// Scanner expands input arguments into file paths.
// Scanner is safe for concurrent use if its provider is.
type Scanner struct {
	fsProvider filesystem.Provider
}

// New creates a scanner over the given provider.
// Panics if provider is nil.
func New(provider filesystem.Provider) *Scanner {
	if provider == nil {
		panic("provider cannot be nil")
	}
	return &Scanner{fsProvider: provider}
}

// Expand resolves every argument and returns the matching files in argument
// order with duplicates removed. Explicit file arguments are kept whatever
// their extension; directories and globs are filtered to data files.
func (s *Scanner) Expand(ctx context.Context, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, pgstitch.ErrEmptyInput
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(arg) == "" {
			continue
		}

		var (
			matches []string
			err     error
		)
		switch {
		case hasMeta(arg):
			matches, err = s.expandGlob(ctx, arg)
		default:
			matches, err = s.expandPath(ctx, arg)
		}
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no input files matched %s: %w", strings.Join(args, " "), pgstitch.ErrEmptyInput)
	}
	return out, nil
}

func (s *Scanner) expandPath(ctx context.Context, arg string) ([]string, error) {
	info, err := s.fsProvider.Stat(ctx, arg)
	if err != nil {
		// A missing file is left for discovery to report as unreadable.
		if errors.Is(err, fs.ErrNotExist) && !strings.HasSuffix(arg, "/") {
			return []string{arg}, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	files, err := s.fsProvider.List(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", arg, err)
	}
	var out []string
	for _, f := range files {
		if IsDataFile(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Scanner) expandGlob(ctx context.Context, pattern string) ([]string, error) {
	root := globRoot(pattern)
	files, err := s.fsProvider.List(ctx, root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	matchPattern := cleanSlash(pattern)
	var out []string
	for _, f := range files {
		ok, err := path.Match(matchPattern, cleanSlash(f))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, pgstitch.ErrInvalidConfig)
		}
		if ok && IsDataFile(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// IsDataFile reports whether name has a delimited-text extension, ignoring a
// trailing compression suffix.
func IsDataFile(name string) bool {
	ext := strings.ToLower(path.Ext(filesystem.StripCompressionExt(toSlash(name))))
	for _, want := range DataExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// globRoot returns the longest directory prefix of pattern without glob
// metacharacters.
func globRoot(pattern string) string {
	slashed := toSlash(pattern)
	i := strings.IndexAny(slashed, "*?[")
	dir := slashed[:i]
	if j := strings.LastIndex(dir, "/"); j >= 0 {
		dir = dir[:j]
	} else {
		dir = "."
	}
	if dir == "" && strings.HasPrefix(slashed, "/") {
		dir = "/"
	}
	if strings.HasPrefix(dir, filesystem.S3Scheme) || filepath.Separator == '/' {
		return dir
	}
	return filepath.FromSlash(dir)
}

func toSlash(p string) string {
	if strings.HasPrefix(p, filesystem.S3Scheme) {
		return p
	}
	return filepath.ToSlash(p)
}

func cleanSlash(p string) string {
	if strings.HasPrefix(p, filesystem.S3Scheme) {
		return p
	}
	return path.Clean(filepath.ToSlash(p))
}
