package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pgstitch/internal/config"
	"github.com/vvka-141/pgstitch/internal/files/filesystem"
	"github.com/vvka-141/pgstitch/internal/loader"
	"github.com/vvka-141/pgstitch/internal/services"
	"github.com/vvka-141/pgstitch/internal/tui"
	"github.com/vvka-141/pgstitch/internal/ui"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

var loadCmd = &cobra.Command{
	Use:   "load <input>... [flags]",
	Short: "Reconcile input files and bulk load them into a table",
	Long: `Load reads the header of every input, computes the union of their columns
and streams each file in chunks into one table. Columns missing from a file
are loaded as NULL. The table is created with one text column per union
column when it does not exist.

Inputs may be files, directories (every .csv, .tsv and .txt inside),
glob patterns or s3:// URLs. .gz and .zst files are decompressed on the fly.
Files whose header cannot be read are skipped and reported.

When the table exists, --if-exists decides:
  fail     stop with an error (default)
  replace  drop and recreate it; asks you to type the table name unless --force
  append   insert into it; every input column must already exist

Password Authentication:
  Password is NOT accepted as a CLI flag. Use $PGPASSWORD, .pgpass,
  or a connection string.

Examples:
  # Load every CSV of a directory into public.sales
  pgstitch load ./exports -d analytics --table sales

  # Replace an existing table in CI
  pgstitch load 'exports/*.csv.gz' --connection "$DATABASE_URL" \
    --table staging.sales --if-exists replace --force

  # Record the source file and a batch label on every row
  pgstitch load ./exports -d analytics --add-filename --set batch=2024-Q1

  # Load into a local SQLite file
  pgstitch load ./exports --connection sqlite://sales.db

  # See what would be loaded without connecting
  pgstitch load ./exports --dry-run`,
	Args:              RequireInputs,
	ValidArgsFunction: completeInputs,
	RunE:              runLoad,
}

type loadFlagValues struct {
	conn      connectionFlags
	reconcile reconcileFlags

	table               string
	ifExists            string
	force               bool
	dryRun              bool
	maxBatchesPerSecond float64
	timeout             time.Duration
}

var loadFlags loadFlagValues

func init() {
	rootCmd.AddCommand(loadCmd)

	addConnectionFlags(loadCmd, &loadFlags.conn)
	addReconcileFlags(loadCmd, &loadFlags.reconcile, true)

	loadCmd.Flags().StringVarP(&loadFlags.table, "table", "t", "",
		"Target table, optionally schema-qualified (default: derived from the first input file name)")
	loadCmd.Flags().StringVar(&loadFlags.ifExists, "if-exists", "",
		"Policy when the table exists: fail|replace|append (default: fail)")
	loadCmd.Flags().BoolVar(&loadFlags.force, "force", false,
		"Skip the interactive confirmation for --if-exists replace\n"+
			"A short countdown is shown instead; Ctrl+C cancels")
	loadCmd.Flags().BoolVar(&loadFlags.dryRun, "dry-run", false,
		"Discover and combine the inputs without connecting to a database")
	loadCmd.Flags().Float64Var(&loadFlags.maxBatchesPerSecond, "max-batches-per-second", 0,
		"Throttle the bulk channel (0 = unlimited)")
	loadCmd.Flags().DurationVar(&loadFlags.timeout, "timeout", pgstitch.DefaultTimeout,
		"Catastrophic failure protection timeout for the whole run\n"+
			"Examples: 30s, 5m, 1h30m")

	_ = loadCmd.RegisterFlagCompletionFunc("if-exists", completeIfExists)
}

// buildLoadConfig builds a LoadConfig from CLI flags, pgstitch.yaml and environment.
func buildLoadConfig(cmd *cobra.Command, inputs []string, projectCfg *config.ProjectConfig, logger pgstitch.Logger) (pgstitch.LoadConfig, error) {
	yaml := projectCfg
	if yaml == nil {
		yaml = &config.ProjectConfig{}
	}

	opts, err := loadFlags.reconcile.options(cmd, projectCfg)
	if err != nil {
		return pgstitch.LoadConfig{}, err
	}

	table := loadFlags.table
	if !cmd.Flags().Changed("table") && table == "" {
		table = yaml.Table
	}
	policyName := loadFlags.ifExists
	if !cmd.Flags().Changed("if-exists") && policyName == "" {
		policyName = yaml.IfExists
	}
	policy, err := pgstitch.ParseIfExists(policyName)
	if err != nil {
		return pgstitch.LoadConfig{}, err
	}

	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, loadFlags.timeout)
	if err != nil {
		return pgstitch.LoadConfig{}, err
	}

	cfg := pgstitch.LoadConfig{
		Inputs:              inputs,
		Reconcile:           opts,
		Target:              pgstitch.LoadTarget{Table: table, IfExists: policy},
		Force:               loadFlags.force,
		DryRun:              loadFlags.dryRun,
		MaxBatchesPerSecond: loadFlags.maxBatchesPerSecond,
		Timeout:             timeout,
		Verbose:             rootFlags.verbose,
	}

	if !cfg.DryRun {
		conn, err := resolveConnectionFromFlags(loadFlags.conn, projectCfg)
		if err != nil {
			return pgstitch.LoadConfig{}, err
		}
		logConnectionVerbose(logger, conn)
		cfg.Target.Connection = conn
	}
	return cfg, nil
}

// selectApprover picks the confirmation used before a table is replaced.
func selectApprover(force, verbose bool) pgstitch.Approver {
	if force {
		return ui.NewForcedApprover(verbose)
	}
	return ui.NewInteractiveApprover(verbose)
}

func newPipeline(logger pgstitch.Logger, approver pgstitch.Approver) *services.Pipeline {
	return services.NewPipeline(
		filesystem.NewRouter(filesystem.NewOSFileSystem()),
		loader.OpenStore,
		approver,
		logger,
	)
}

// signalContext is cancelled on Ctrl+C or SIGTERM. A load stops at the next
// batch boundary; batches already committed stay in the table.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runLoad(cmd *cobra.Command, args []string) error {
	projectCfg, err := loadProjectConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	format := effectiveLogFormat(projectCfg)
	logger, flush, err := newLogger(format, rootFlags.verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer flush()

	cfg, err := buildLoadConfig(cmd, args, projectCfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline := newPipeline(logger, selectApprover(cfg.Force, cfg.Verbose))

	// The approver talks to the terminal, so the spinner stays off whenever
	// a replacement may need confirmation.
	mode := tui.DetectMode()
	if format == "json" || cfg.Target.IfExists == pgstitch.IfExistsReplace {
		mode = tui.ModeNonInteractive
	}

	title := "Loading"
	if cfg.DryRun {
		title = "Dry run"
	}
	var result *services.LoadResult
	err = tui.Track(ctx, mode, cmd.ErrOrStderr(), title, func(ctx context.Context, progress func(pgstitch.BatchResult)) error {
		var err error
		result, err = pipeline.Load(ctx, cfg, progress)
		return err
	})

	printLoadSummary(cmd.OutOrStdout(), result, err != nil)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	return nil
}

// printLoadSummary writes per-file row counts and run totals. After a failed
// run only the committed rows are reported.
func printLoadSummary(w io.Writer, res *services.LoadResult, failed bool) {
	if res == nil {
		return
	}
	if res.Discovery != nil {
		for _, u := range res.Discovery.Unreadable {
			fmt.Fprintf(w, "%s skipped %s: %v\n", tui.SymbolCross, u.Path, u.Err)
		}
	}
	if res.DryRun {
		fmt.Fprintf(w, "dry run: %d row(s) in %d batch(es) from %d file(s)\n",
			res.DryRunRows, res.DryRunBatches, len(res.Paths)-unreadableCount(res))
		return
	}
	if res.Report == nil {
		return
	}

	r := res.Report
	order, counts := r.RowsBySource()
	for _, src := range order {
		fmt.Fprintf(w, "%s %-40s %10d row(s)\n", tui.SymbolCheck, src, counts[src])
	}
	if failed {
		if r.Rows > 0 {
			fmt.Fprintf(w, "%d row(s) committed to %s before the failure, run %s\n", r.Rows, r.Table, r.RunID)
		}
		return
	}
	action := "into existing"
	if r.Created {
		action = "into new"
	}
	fmt.Fprintf(w, "%d row(s) %s table %s (%d column(s), policy %s) in %s, run %s\n",
		r.Rows, action, r.Table, len(r.Columns), r.Policy, r.Duration.Round(time.Millisecond), r.RunID)
}

func unreadableCount(res *services.LoadResult) int {
	if res.Discovery == nil {
		return 0
	}
	return len(res.Discovery.Unreadable)
}
