package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Loader writes a batch source into one table of a TableStore.
// Thread-Safety: NOT safe for concurrent Load calls on the same instance.
type Loader struct {
	store    pgstitch.TableStore
	approver pgstitch.Approver
	logger   pgstitch.Logger

	limiter  *rate.Limiter
	progress func(pgstitch.BatchResult)
	now      func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithRateLimit caps the number of batches sent per second. Zero or a
// negative value leaves the channel unthrottled.
func WithRateLimit(batchesPerSecond float64) Option {
	return func(l *Loader) {
		if batchesPerSecond > 0 {
			l.limiter = rate.NewLimiter(rate.Limit(batchesPerSecond), 1)
		}
	}
}

// WithProgress registers a callback invoked after each committed batch.
func WithProgress(fn func(pgstitch.BatchResult)) Option {
	return func(l *Loader) { l.progress = fn }
}

// New creates a Loader. The approver is consulted before an existing table is
// dropped under the replace policy.
// Panics if store, approver or logger is nil.
func New(store pgstitch.TableStore, approver pgstitch.Approver, logger pgstitch.Logger, opts ...Option) *Loader {
	if store == nil {
		panic("store cannot be nil")
	}
	if approver == nil {
		panic("approver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	l := &Loader{store: store, approver: approver, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load prepares target.Table according to target.IfExists and copies every
// batch of source into it, in order. The caller owns source and closes it.
//
// On failure the returned report lists the batches committed so far. A
// rejected batch yields a *pgstitch.LoadFailureError; a cancelled context
// stops between batches and returns the context error.
func (l *Loader) Load(ctx context.Context, source pgstitch.BatchSource, target pgstitch.LoadTarget) (*pgstitch.LoadReport, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	resolved, err := l.store.ResolveTable(ctx, target.Table)
	if err != nil {
		return nil, err
	}
	if resolved != target.Table {
		l.logger.Verbose("Table '%s' resolves to '%s'", target.Table, resolved)
		target.Table = resolved
	}
	start := l.now()
	report := &pgstitch.LoadReport{
		RunID:  uuid.New(),
		Table:  target.Table,
		Policy: target.IfExists,
	}
	finish := func(err error) (*pgstitch.LoadReport, error) {
		report.Duration = l.now().Sub(start)
		return report, err
	}

	batch, err := source.Next(ctx)
	switch {
	case errors.Is(err, io.EOF):
		batch = nil
		report.Columns = source.Columns()
	case err != nil:
		return finish(fmt.Errorf("failed to read first batch: %w", err))
	default:
		report.Columns = slices.Clone(batch.Columns)
	}

	created, err := l.prepareTable(ctx, target, report.Columns)
	report.Created = created
	if err != nil {
		return finish(err)
	}

	for batch != nil {
		if err := l.copyBatch(ctx, target.Table, report, batch); err != nil {
			return finish(err)
		}

		next := batch.Sequence + 1
		batch, err = source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(l.readFailure(ctx, target.Table, report, next, err))
		}
	}

	l.logger.Verbose("Loaded %d row(s) in %d batch(es) into %s", report.Rows, len(report.Batches), target.Table)
	return finish(nil)
}

// readFailure reports a source that broke after batches were committed.
// Cancellation is returned as is.
func (l *Loader) readFailure(ctx context.Context, table string, report *pgstitch.LoadReport, next int, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	return &pgstitch.LoadFailureError{
		Table:     table,
		Failed:    pgstitch.BatchResult{Sequence: next},
		Completed: slices.Clone(report.Batches),
		Err:       fmt.Errorf("failed to read batch %d: %w", next, err),
	}
}

func (l *Loader) copyBatch(ctx context.Context, table string, report *pgstitch.LoadReport, batch *pgstitch.UnifiedBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !slices.Equal(batch.Columns, report.Columns) {
		return fmt.Errorf("batch %d (%s) has columns %v, table was prepared for %v: %w",
			batch.Sequence, batch.Source, batch.Columns, report.Columns, pgstitch.ErrSchemaDrift)
	}
	if err := batch.Validate(); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	result := pgstitch.BatchResult{Sequence: batch.Sequence, Source: batch.Source, Chunk: batch.Chunk}
	n, err := l.store.CopyRows(ctx, table, batch.Columns, batch.Rows)
	if err != nil {
		result.Rows = n
		return &pgstitch.LoadFailureError{
			Table:     table,
			Failed:    result,
			Completed: slices.Clone(report.Batches),
			Err:       err,
		}
	}

	result.Rows = n
	report.Batches = append(report.Batches, result)
	report.Rows += n
	l.logger.Verbose("Batch %d: %d row(s) from %s (chunk %d)", batch.Sequence, n, batch.Source, batch.Chunk)
	if l.progress != nil {
		l.progress(result)
	}
	return nil
}
