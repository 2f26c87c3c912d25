package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pgstitch",
	Short: "Stitch CSV files with drifting headers into one database table",
	Long: `pgstitch combines delimited files whose headers differ into a single
table. It reads every header, computes the union of the columns in the order
they first appear, and streams each file in bounded chunks into PostgreSQL
(COPY) or SQLite. Columns a file does not have load as NULL, never as an
empty string.

Commands:
  discover   Show which file carries which column
  load       Reconcile the files and bulk load them into a table
  export     Reconcile the files and write one CSV or Parquet file

Configuration precedence (lowest to highest):
  defaults < pgstitch.yaml < .env < PG*/cloud environment variables < flags

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  12 - User denied table replacement
  13 - Bulk load rejected by the database
  14 - No input files, or none readable
  15 - Table exists, schema conflict or schema drift`,
	SilenceUsage: true,
}

type rootFlagValues struct {
	verbose    bool
	logFormat  string
	configPath string
}

var rootFlags rootFlagValues

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// Declared without a shorthand so -h stays free for --host.
	rootCmd.PersistentFlags().Bool("help", false, "Help for pgstitch")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false,
		"Enable verbose output for all commands")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "",
		"Log format: text (default) or json\n"+
			"json writes structured logs to stderr and disables the progress spinner")
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "",
		"Path to the project configuration (default: ./"+configFileName+" if present)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", completeLogFormats)
}
