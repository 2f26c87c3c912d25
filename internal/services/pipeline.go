package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vvka-141/pgstitch/internal/files/filesystem"
	"github.com/vvka-141/pgstitch/internal/files/scanner"
	"github.com/vvka-141/pgstitch/internal/loader"
	"github.com/vvka-141/pgstitch/internal/reconcile"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// StoreOpener connects to a database and returns its TableStore.
type StoreOpener func(ctx context.Context, cfg *pgstitch.ConnectionConfig, logger pgstitch.Logger) (pgstitch.TableStore, error)

// Pipeline runs discover, load and export over one filesystem provider.
type Pipeline struct {
	fsProvider filesystem.Provider
	scanner    *scanner.Scanner
	openStore  StoreOpener
	approver   pgstitch.Approver
	logger     pgstitch.Logger
}

// NewPipeline creates a Pipeline with all dependencies injected.
// Panics on nil dependencies; those are wiring mistakes, not runtime conditions.
func NewPipeline(provider filesystem.Provider, openStore StoreOpener, approver pgstitch.Approver, logger pgstitch.Logger) *Pipeline {
	if provider == nil {
		panic("provider cannot be nil")
	}
	if openStore == nil {
		panic("openStore cannot be nil")
	}
	if approver == nil {
		panic("approver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Pipeline{
		fsProvider: provider,
		scanner:    scanner.New(provider),
		openStore:  openStore,
		approver:   approver,
		logger:     logger,
	}
}

// Discover expands inputs and reads every header.
//
// The returned Discovery is non-nil whenever expansion succeeded, including
// when no file was readable, so callers can still show what failed.
func (p *Pipeline) Discover(ctx context.Context, inputs []string, opts pgstitch.ReconcileOptions) (*reconcile.Discovery, error) {
	paths, err := p.scanner.Expand(ctx, inputs)
	if err != nil {
		return nil, err
	}
	r, err := reconcile.New(p.fsProvider, opts, p.logger)
	if err != nil {
		return nil, err
	}
	return r.Discover(ctx, paths)
}

// Preview returns the first n reconciled rows of every readable input.
func (p *Pipeline) Preview(ctx context.Context, inputs []string, opts pgstitch.ReconcileOptions, n int) (*reconcile.Discovery, []*pgstitch.UnifiedBatch, error) {
	paths, err := p.scanner.Expand(ctx, inputs)
	if err != nil {
		return nil, nil, err
	}
	r, err := reconcile.New(p.fsProvider, opts, p.logger)
	if err != nil {
		return nil, nil, err
	}
	return r.Preview(ctx, paths, n)
}

// LoadResult is the outcome of a load run.
type LoadResult struct {
	Paths     []string
	Discovery *reconcile.Discovery

	// Report is set for real runs, including failed ones that got as far as
	// the loader.
	Report *pgstitch.LoadReport

	// DryRun totals, set when the run did not connect.
	DryRun        bool
	DryRunRows    int64
	DryRunBatches int
}

// Load expands and reconciles cfg.Inputs and loads them into cfg.Target.
// An empty target table defaults to a name derived from the first input.
// Unreadable files are logged and reported in the result; they fail the run
// only when no file is readable.
func (p *Pipeline) Load(ctx context.Context, cfg pgstitch.LoadConfig, progress func(pgstitch.BatchResult)) (*LoadResult, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	paths, err := p.scanner.Expand(ctx, cfg.Inputs)
	if err != nil {
		return nil, err
	}
	result := &LoadResult{Paths: paths, DryRun: cfg.DryRun}

	if cfg.Target.Table == "" {
		cfg.Target.Table = DefaultTableName(paths[0])
		p.logger.Verbose("No target table given, using %s", cfg.Target.Table)
	}
	if err := cfg.Validate(); err != nil {
		return result, err
	}

	r, err := reconcile.New(p.fsProvider, cfg.Reconcile, p.logger)
	if err != nil {
		return result, err
	}
	d, err := r.Discover(ctx, paths)
	result.Discovery = d
	if err != nil {
		return result, err
	}
	p.reportUnreadable(d)

	comb, err := r.CombineDiscovery(d)
	if err != nil {
		return result, err
	}
	defer comb.Close()

	if cfg.DryRun {
		err := p.drain(ctx, comb, result, progress)
		return result, err
	}

	store, err := p.openStore(ctx, cfg.Target.Connection, p.logger)
	if err != nil {
		return result, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			p.logger.Error("Failed to close connection: %v", cerr)
		}
	}()

	opts := []loader.Option{loader.WithRateLimit(cfg.MaxBatchesPerSecond)}
	if progress != nil {
		opts = append(opts, loader.WithProgress(progress))
	}
	l := loader.New(store, p.approver, p.logger, opts...)

	report, err := l.Load(ctx, comb, cfg.Target)
	result.Report = report
	if err != nil {
		return result, err
	}
	p.logger.Info("✓ Loaded %d row(s) from %d file(s) into %s", report.Rows, len(paths)-len(d.Unreadable), report.Table)
	return result, nil
}

// drain combines every batch without writing anywhere.
func (p *Pipeline) drain(ctx context.Context, src pgstitch.BatchSource, result *LoadResult, progress func(pgstitch.BatchResult)) error {
	for {
		b, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			p.logger.Info("Dry run: %d row(s) in %d batch(es) would be loaded", result.DryRunRows, result.DryRunBatches)
			return nil
		}
		if err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return err
		}
		result.DryRunRows += int64(b.Len())
		result.DryRunBatches++
		if progress != nil {
			progress(pgstitch.BatchResult{Sequence: b.Sequence, Source: b.Source, Chunk: b.Chunk, Rows: int64(b.Len())})
		}
	}
}

func (p *Pipeline) reportUnreadable(d *reconcile.Discovery) {
	for _, u := range d.Unreadable {
		p.logger.Error("Skipping %s: %v", u.Path, u.Err)
	}
	if n := len(d.Unreadable); n > 0 {
		p.logger.Info("%d of %d input file(s) could not be read", n, n+len(d.Matrix.Files))
	}
}

// Describe summarizes a discovery in one line.
func Describe(d *reconcile.Discovery) string {
	if d == nil || d.Matrix == nil {
		return "no readable files"
	}
	return fmt.Sprintf("%d readable file(s), %d unreadable, %d column(s) in the union (%d common)",
		len(d.Matrix.Files), len(d.Unreadable), len(d.Matrix.Columns), len(d.Matrix.CommonColumns()))
}
