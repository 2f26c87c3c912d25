package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vvka-141/pgstitch/internal/export"
	"github.com/vvka-141/pgstitch/internal/reconcile"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// ExportConfig describes an export run.
type ExportConfig struct {
	Inputs    []string
	Reconcile pgstitch.ReconcileOptions

	// Output is a file path, or "-" for stdout (CSV only).
	Output string
	Format export.Format

	Timeout time.Duration
}

// Validate checks if the ExportConfig has all required fields.
func (c *ExportConfig) Validate() error {
	var errs []error
	if len(c.Inputs) == 0 {
		errs = append(errs, fmt.Errorf("at least one input is required: %w", pgstitch.ErrEmptyInput))
	}
	if strings.TrimSpace(c.Output) == "" {
		errs = append(errs, fmt.Errorf("output path is required: %w", pgstitch.ErrInvalidConfig))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", pgstitch.ErrInvalidConfig))
	}
	if err := c.Reconcile.WithDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ExportResult is the outcome of an export run.
type ExportResult struct {
	Discovery *reconcile.Discovery
	Columns   []string
	Rows      int64
}

// Export reconciles cfg.Inputs and writes the combined rows to cfg.Output.
// stdout receives the data when Output is "-".
func (p *Pipeline) Export(ctx context.Context, cfg ExportConfig, stdout io.Writer) (*ExportResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	paths, err := p.scanner.Expand(ctx, cfg.Inputs)
	if err != nil {
		return nil, err
	}
	r, err := reconcile.New(p.fsProvider, cfg.Reconcile, p.logger)
	if err != nil {
		return nil, err
	}
	result := &ExportResult{}
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

	result.Columns = comb.Columns()
	sink, err := export.Create(cfg.Output, cfg.Format, result.Columns, r.Options().Delimiter, stdout)
	if err != nil {
		return result, err
	}

	rows, err := export.Copy(ctx, comb, sink)
	result.Rows = rows
	if cerr := sink.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to finish %s: %w", cfg.Output, cerr)
	}
	if err != nil {
		return result, err
	}
	p.logger.Verbose("Exported %d row(s) as %s to %s", rows, cfg.Format, cfg.Output)
	return result, nil
}
