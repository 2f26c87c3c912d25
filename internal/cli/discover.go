package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pgstitch/internal/export"
	"github.com/vvka-141/pgstitch/internal/services"
	"github.com/vvka-141/pgstitch/internal/tui"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <input>... [flags]",
	Short: "Show which input file carries which column",
	Long: `Discover reads only the header of every input and prints the presence
matrix: one row per column of the union, one numbered column per readable
file. Unreadable files are listed below the matrix.

With --preview N the first N reconciled rows of every file are printed as CSV,
with missing columns left empty.

Examples:
  pgstitch discover ./exports
  pgstitch discover 'exports/*.csv' --rename Profit=profit --preview 3`,
	Args:              RequireInputs,
	ValidArgsFunction: completeInputs,
	RunE:              runDiscover,
}

type discoverFlagValues struct {
	reconcile reconcileFlags
	preview   int
}

var discoverFlags discoverFlagValues

func init() {
	rootCmd.AddCommand(discoverCmd)

	addReconcileFlags(discoverCmd, &discoverFlags.reconcile, false)
	discoverCmd.Flags().IntVar(&discoverFlags.preview, "preview", 0,
		"Also print the first N reconciled rows of every file")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	projectCfg, err := loadProjectConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(effectiveLogFormat(projectCfg), rootFlags.verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer flush()

	opts, err := discoverFlags.reconcile.options(cmd, projectCfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline := newPipeline(logger, selectApprover(false, rootFlags.verbose))
	out := cmd.OutOrStdout()

	if discoverFlags.preview > 0 {
		d, batches, err := pipeline.Preview(ctx, args, opts, discoverFlags.preview)
		if d != nil {
			fmt.Fprint(out, tui.RenderMatrix(d.Matrix, d.Unreadable))
		}
		if err != nil {
			return fmt.Errorf("discover failed: %w", err)
		}
		return printPreview(out, batches, opts.WithDefaults().Delimiter)
	}

	d, err := pipeline.Discover(ctx, args, opts)
	if d != nil {
		fmt.Fprint(out, tui.RenderMatrix(d.Matrix, d.Unreadable))
	}
	if err != nil {
		return fmt.Errorf("discover failed: %w", err)
	}
	logger.Verbose("%s", services.Describe(d))
	return nil
}

func printPreview(w io.Writer, batches []*pgstitch.UnifiedBatch, delim rune) error {
	for _, b := range batches {
		fmt.Fprintf(w, "\n== %s ==\n", b.Source)
		sink, err := export.Create("-", export.FormatCSV, b.Columns, delim, w)
		if err != nil {
			return err
		}
		err = sink.Write(b)
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to print preview of %s: %w", b.Source, err)
		}
	}
	return nil
}
