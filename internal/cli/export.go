package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pgstitch/internal/export"
	"github.com/vvka-141/pgstitch/internal/services"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

var exportCmd = &cobra.Command{
	Use:   "export <input>... [flags]",
	Short: "Reconcile input files into one CSV or Parquet file",
	Long: `Export combines the inputs exactly like load, but writes the result to a
file instead of a database. Columns missing from a file are written as empty
CSV fields or Parquet nulls.

Parquet column names are reduced to letters, digits and underscores.
Parquet output needs a file; CSV may go to stdout with -o -.

Examples:
  pgstitch export ./exports -o combined.csv
  pgstitch export ./exports -o combined.parquet --add-filename
  pgstitch export 'exports/*.csv' -o - | head`,
	Args:              RequireInputs,
	ValidArgsFunction: completeInputs,
	RunE:              runExport,
}

type exportFlagValues struct {
	reconcile reconcileFlags
	output    string
	format    string
	timeout   time.Duration
}

var exportFlags exportFlagValues

func init() {
	rootCmd.AddCommand(exportCmd)

	addReconcileFlags(exportCmd, &exportFlags.reconcile, true)
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "-",
		"Output file, or - for stdout")
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "",
		"Output format: csv|parquet (default: from the output extension, else csv)")
	exportCmd.Flags().DurationVar(&exportFlags.timeout, "timeout", pgstitch.DefaultTimeout,
		"Catastrophic failure protection timeout for the whole run")

	_ = exportCmd.RegisterFlagCompletionFunc("format", completeExportFormats)
}

func runExport(cmd *cobra.Command, args []string) error {
	projectCfg, err := loadProjectConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(effectiveLogFormat(projectCfg), rootFlags.verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer flush()

	opts, err := exportFlags.reconcile.options(cmd, projectCfg)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(exportFlags.format, exportFlags.output)
	if err != nil {
		return err
	}
	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, exportFlags.timeout)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline := newPipeline(logger, selectApprover(false, rootFlags.verbose))
	res, err := pipeline.Export(ctx, services.ExportConfig{
		Inputs:    args,
		Reconcile: opts,
		Output:    exportFlags.output,
		Format:    format,
		Timeout:   timeout,
	}, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if exportFlags.output != "-" {
		logger.Info("✓ Wrote %d row(s) and %d column(s) to %s", res.Rows, len(res.Columns), exportFlags.output)
	}
	return nil
}
