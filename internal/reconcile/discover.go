package reconcile

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Discovery is the header-only view of a run: the presence matrix over the
// readable files plus the files that could not be read.
type Discovery struct {
	Matrix     *pgstitch.PresenceMatrix
	Unreadable []*pgstitch.UnreadableFileError
}

// Paths returns the readable file paths in input order.
func (d *Discovery) Paths() []string {
	if d.Matrix == nil {
		return nil
	}
	out := make([]string, len(d.Matrix.Files))
	for i, f := range d.Matrix.Files {
		out[i] = f.Path
	}
	return out
}

// UnreadableErr joins the unreadable-file errors, or returns nil.
func (d *Discovery) UnreadableErr() error {
	errs := make([]error, len(d.Unreadable))
	for i, u := range d.Unreadable {
		errs[i] = u
	}
	return errors.Join(errs...)
}

// Discover reads the header of every path and computes the column union.
//
// Unreadable files are collected, not fatal. Discover fails with
// ErrEmptyInput when paths is empty and ErrNoReadableFiles when no file could
// be read. Headers are read by up to DiscoverWorkers goroutines; results keep
// input order either way.
func (r *Reconciler) Discover(ctx context.Context, paths []string) (*Discovery, error) {
	if len(paths) == 0 {
		return nil, pgstitch.ErrEmptyInput
	}

	descs := make([]pgstitch.FileDescriptor, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.DiscoverWorkers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			descs[i], errs[i] = r.readHeader(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := &Discovery{}
	var readable []pgstitch.FileDescriptor
	for i, p := range paths {
		if errs[i] != nil {
			r.logger.Verbose("Skipping unreadable file %s: %v", p, errs[i])
			d.Unreadable = append(d.Unreadable, &pgstitch.UnreadableFileError{Path: p, Err: errs[i]})
			continue
		}
		r.logger.Verbose("Header of %s: %d column(s)", p, len(descs[i].Columns))
		readable = append(readable, descs[i])
	}

	if len(readable) == 0 {
		return d, fmt.Errorf("all %d input file(s) failed: %w", len(paths), errors.Join(pgstitch.ErrNoReadableFiles, d.UnreadableErr()))
	}
	d.Matrix = ComputeUnion(readable)
	return d, nil
}

// ComputeUnion builds the presence matrix for descs. Columns appear once, in
// the order they are first seen scanning files in order and headers left to
// right.
func ComputeUnion(descs []pgstitch.FileDescriptor) *pgstitch.PresenceMatrix {
	m := &pgstitch.PresenceMatrix{Files: descs}
	index := make(map[string]int)
	for _, d := range descs {
		for _, c := range d.Columns {
			if _, ok := index[c]; !ok {
				index[c] = len(m.Columns)
				m.Columns = append(m.Columns, c)
			}
		}
	}

	m.Present = make([][]bool, len(descs))
	for i, d := range descs {
		row := make([]bool, len(m.Columns))
		for _, c := range d.Columns {
			row[index[c]] = true
		}
		m.Present[i] = row
	}
	return m
}
