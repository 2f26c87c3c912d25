package reconcile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/vvka-141/pgstitch/internal/files/filesystem"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Combination is the batch source of one run. It reads the readable files of
// its Discovery in order, one chunk at a time.
//
// A Combination is not safe for concurrent use. Close releases the file that
// is currently open.
type Combination struct {
	*Discovery

	r         *Reconciler
	chunkRows int
	maxChunks int // per file; 0 means unlimited

	base      []string // union, plus the filename column when enabled
	fileIndex int
	cur       *fileCursor
	sequence  int
	emitted   []string // column set of the first emitted batch

	declaredOnce sync.Once
	declared     []string
}

type fileCursor struct {
	index   int
	desc    pgstitch.FileDescriptor
	rc      io.ReadCloser
	cr      *csv.Reader
	mapping []int // file column position -> union position
	chunk   int
	line    int
}

// Combine discovers paths and returns the batch source over the readable
// files. The returned Combination also carries the Discovery, so unreadable
// files can be reported before any batch is consumed.
func (r *Reconciler) Combine(ctx context.Context, paths []string) (*Combination, error) {
	d, err := r.Discover(ctx, paths)
	if err != nil {
		return nil, err
	}
	return r.CombineDiscovery(d)
}

// CombineDiscovery builds the batch source for an earlier Discover result.
func (r *Reconciler) CombineDiscovery(d *Discovery) (*Combination, error) {
	if d == nil || d.Matrix == nil {
		return nil, pgstitch.ErrNoReadableFiles
	}

	base := slices.Clone(d.Matrix.Columns)
	if r.opts.AddFilename {
		if slices.Contains(base, r.opts.FilenameColumn) {
			return nil, fmt.Errorf("filename column %q collides with an input column (use --filename-column): %w",
				r.opts.FilenameColumn, pgstitch.ErrInvalidConfig)
		}
		base = append(base, r.opts.FilenameColumn)
	}

	return &Combination{
		Discovery: d,
		r:         r,
		chunkRows: r.opts.ChunkRows,
		base:      base,
	}, nil
}

// Columns reports the column set every batch will carry. With a transform it
// is the transform's output for an empty batch of the union columns.
func (c *Combination) Columns() []string {
	c.declaredOnce.Do(func() {
		c.declared = c.base
		if c.r.opts.Transform == nil {
			return
		}
		shape := &pgstitch.UnifiedBatch{Columns: slices.Clone(c.base)}
		if out, err := c.r.opts.Transform(shape); err == nil && out != nil {
			c.declared = out.Columns
		}
	})
	return slices.Clone(c.declared)
}

// Next returns the next non-empty batch, or io.EOF when every file has been
// read. Files with a header and no rows produce no batch.
func (c *Combination) Next(ctx context.Context) (*pgstitch.UnifiedBatch, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if c.cur == nil {
			if c.fileIndex >= len(c.Matrix.Files) {
				return nil, io.EOF
			}
			cur, err := c.open(ctx, c.fileIndex)
			if err != nil {
				return nil, err
			}
			c.cur = cur
			c.fileIndex++
		}

		batch, err := c.readChunk()
		if err != nil {
			c.closeCurrent()
			return nil, err
		}
		if batch == nil {
			c.closeCurrent()
			continue
		}
		if c.maxChunks > 0 && c.cur.chunk >= c.maxChunks {
			c.closeCurrent()
		}

		return c.finish(batch)
	}
}

// Close releases the open file, if any. It is safe to call more than once.
func (c *Combination) Close() error {
	return c.closeCurrent()
}

func (c *Combination) open(ctx context.Context, index int) (*fileCursor, error) {
	desc := c.Matrix.Files[index]
	rc, err := filesystem.OpenDecompressed(ctx, c.r.fsProvider, desc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen %s: %w", desc.Path, err)
	}

	cr := newCSVReader(rc, c.r.opts.Delimiter)
	header, err := parseHeader(cr, c.r.opts.Rename)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to reread header of %s: %w", desc.Path, err)
	}
	if !slices.Equal(header, desc.Columns) {
		rc.Close()
		return nil, fmt.Errorf("header of %s changed since discovery", desc.Path)
	}

	mapping := make([]int, len(desc.Columns))
	for i, col := range desc.Columns {
		mapping[i] = slices.Index(c.base, col)
	}

	c.r.logger.Verbose("Reading %s", desc.Path)
	return &fileCursor{index: index, desc: desc, rc: rc, cr: cr, mapping: mapping, line: 1}, nil
}

// readChunk reads up to chunkRows records from the current file. It returns
// nil, nil at end of file.
func (c *Combination) readChunk() (*pgstitch.UnifiedBatch, error) {
	cur := c.cur
	width := len(c.base)
	var filename pgstitch.Cell
	if c.r.opts.AddFilename {
		filename = pgstitch.TextCell(cur.desc.Path)
	}

	var rows [][]pgstitch.Cell
	for len(rows) < c.chunkRows {
		record, err := cur.cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		cur.line++
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cur.desc.Path, err)
		}
		if len(record) != len(cur.mapping) {
			return nil, fmt.Errorf("%s line %d: expected %d field(s), got %d",
				cur.desc.Path, cur.line, len(cur.mapping), len(record))
		}

		row := make([]pgstitch.Cell, width)
		for i, v := range record {
			row[cur.mapping[i]] = pgstitch.TextCell(v)
		}
		if c.r.opts.AddFilename {
			row[width-1] = filename
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil
	}
	b := &pgstitch.UnifiedBatch{
		Source:    cur.desc.Path,
		FileIndex: cur.index,
		Chunk:     cur.chunk,
		Columns:   slices.Clone(c.base),
		Rows:      rows,
	}
	cur.chunk++
	return b, nil
}

// finish applies the transform and enforces a stable column set.
func (c *Combination) finish(b *pgstitch.UnifiedBatch) (*pgstitch.UnifiedBatch, error) {
	b.Sequence = c.sequence
	c.sequence++

	if t := c.r.opts.Transform; t != nil {
		out, err := t(b)
		if err != nil {
			return nil, fmt.Errorf("transform failed on batch %d (%s, chunk %d): %w", b.Sequence, b.Source, b.Chunk, err)
		}
		if out == nil {
			return nil, fmt.Errorf("transform returned no batch for %s chunk %d", b.Source, b.Chunk)
		}
		b = out
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("transform produced a misaligned batch: %w", err)
		}
	}

	if c.emitted == nil {
		c.emitted = slices.Clone(b.Columns)
	} else if !slices.Equal(c.emitted, b.Columns) {
		return nil, fmt.Errorf("batch %d (%s) has columns %v, earlier batches had %v: %w",
			b.Sequence, b.Source, b.Columns, c.emitted, pgstitch.ErrSchemaDrift)
	}
	return b, nil
}

func (c *Combination) closeCurrent() error {
	if c.cur == nil {
		return nil
	}
	err := c.cur.rc.Close()
	c.cur = nil
	return err
}

var _ pgstitch.BatchSource = (*Combination)(nil)
