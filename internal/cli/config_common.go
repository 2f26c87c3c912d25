package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/pgstitch/internal/config"
	"github.com/vvka-141/pgstitch/internal/db"
	"github.com/vvka-141/pgstitch/internal/logging"
	"github.com/vvka-141/pgstitch/internal/params"
	"github.com/vvka-141/pgstitch/internal/reconcile"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

const configFileName = config.ConfigFileName

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	sslCert        string
	sslKey         string
	sslRootCert    string
	authMethod     string
	azureTenantID  string
	azureClientID  string
	awsRegion      string
	googleInstance string
}

func addConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	cmd.Flags().StringVar(&f.connection, "connection", "",
		"Connection string: PostgreSQL URI, ADO.NET key=value, or sqlite://path.db\n"+
			"Mutually exclusive with granular flags (--host, --port, --username).\n"+
			"Alternative: PGSTITCH_CONNECTION_STRING or DATABASE_URL environment variable.")
	cmd.Flags().StringVarP(&f.host, "host", "h", "",
		"PostgreSQL server host\n"+
			"Precedence: --host > $PGHOST > pgstitch.yaml > localhost")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0,
		"PostgreSQL server port\n"+
			"Precedence: --port > $PGPORT > pgstitch.yaml > 5432")
	cmd.Flags().StringVarP(&f.username, "username", "U", "",
		"PostgreSQL user (default: $PGUSER or current OS user)")
	cmd.Flags().StringVarP(&f.database, "database", "d", "",
		"Database name (overrides the database of a connection string, or $PGDATABASE)")
	cmd.Flags().StringVar(&f.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n"+
			"(default: prefer, or $PGSSLMODE)")
	cmd.Flags().StringVar(&f.sslCert, "sslcert", "", "Client certificate file (or $PGSSLCERT)")
	cmd.Flags().StringVar(&f.sslKey, "sslkey", "", "Client private key file (or $PGSSLKEY)")
	cmd.Flags().StringVar(&f.sslRootCert, "sslrootcert", "", "Root CA certificate file (or $PGSSLROOTCERT)")
	cmd.Flags().StringVar(&f.authMethod, "auth", "",
		"Authentication: standard|cert|aws|google|azure (default: standard)")
	cmd.Flags().StringVar(&f.azureTenantID, "azure-tenant-id", "",
		"Azure AD tenant/directory ID (overrides $AZURE_TENANT_ID)")
	cmd.Flags().StringVar(&f.azureClientID, "azure-client-id", "",
		"Azure AD application/client ID (overrides $AZURE_CLIENT_ID)")
	cmd.Flags().StringVar(&f.awsRegion, "aws-region", "",
		"AWS region for RDS IAM authentication (overrides $AWS_REGION)")
	cmd.Flags().StringVar(&f.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance)")

	_ = cmd.RegisterFlagCompletionFunc("sslmode", completeSSLModes)
	_ = cmd.RegisterFlagCompletionFunc("auth", completeAuthMethods)
}

// resolveConnectionFromFlags resolves connection configuration from flags,
// environment and project config.
func resolveConnectionFromFlags(flags connectionFlags, projectCfg *config.ProjectConfig) (*pgstitch.ConnectionConfig, error) {
	granular := &db.GranularConnFlags{
		Host:        flags.host,
		Port:        flags.port,
		Username:    flags.username,
		Database:    flags.database,
		SSLMode:     flags.sslMode,
		SSLCert:     flags.sslCert,
		SSLKey:      flags.sslKey,
		SSLRootCert: flags.sslRootCert,
	}
	cloud := &db.CloudFlags{
		AuthMethod:     flags.authMethod,
		AzureTenantID:  flags.azureTenantID,
		AzureClientID:  flags.azureClientID,
		AWSRegion:      flags.awsRegion,
		GoogleInstance: flags.googleInstance,
	}
	return db.ResolveConnectionParams(flags.connection, granular, cloud, db.LoadFromEnvironment(), projectCfg)
}

// loadProjectConfig loads .env into the environment and reads the project
// configuration. A missing default pgstitch.yaml is not an error; a missing
// file named with --config is.
func loadProjectConfig(path string) (*config.ProjectConfig, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = configFileName
	}
	projectCfg, err := config.LoadFile(path)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w: %w", path, err, pgstitch.ErrInvalidConfig)
	}
	return projectCfg, nil
}

// resolveEffectiveTimeout returns the effective timeout, preferring
// pgstitch.yaml if the flag wasn't set.
func resolveEffectiveTimeout(cmd *cobra.Command, projectCfg *config.ProjectConfig, flagTimeout time.Duration) (time.Duration, error) {
	if projectCfg != nil && !cmd.Flags().Changed("timeout") {
		d, err := projectCfg.TimeoutDuration()
		if err != nil {
			return 0, err
		}
		if d > 0 {
			return d, nil
		}
	}
	return flagTimeout, nil
}

// newLogger builds the logger selected by --log-format. The returned
// function flushes buffered output.
func newLogger(format string, verbose bool, stderr io.Writer) (pgstitch.Logger, func(), error) {
	switch format {
	case "", "text":
		return logging.NewConsoleLoggerTo(stderr, verbose), func() {}, nil
	case "json":
		zl, err := logging.NewZapLogger(verbose)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create json logger: %w", err)
		}
		return zl, func() { _ = zl.Sync() }, nil
	}
	return nil, nil, fmt.Errorf("unknown log format %q (want text or json): %w", format, pgstitch.ErrInvalidConfig)
}

// effectiveLogFormat prefers --log-format over log_format in pgstitch.yaml.
func effectiveLogFormat(projectCfg *config.ProjectConfig) string {
	if rootFlags.logFormat == "" && projectCfg != nil {
		return projectCfg.LogFormat
	}
	return rootFlags.logFormat
}

// logConnectionVerbose logs connection details without secrets.
func logConnectionVerbose(logger pgstitch.Logger, connConfig *pgstitch.ConnectionConfig) {
	logger.Verbose("Connection resolved: %s", db.Describe(connConfig))
	if connConfig.Driver == pgstitch.DriverSQLite {
		return
	}
	logger.Verbose("  SSL Mode: %s", connConfig.SSLMode)
	if connConfig.SSLCert != "" {
		logger.Verbose("  SSL Cert: %s", connConfig.SSLCert)
	}
	if connConfig.SSLRootCert != "" {
		logger.Verbose("  SSL Root Cert: %s", connConfig.SSLRootCert)
	}
	logger.Verbose("  Auth Method: %s", connConfig.AuthMethod)
}

// reconcileFlags holds the flags shared by discover, load and export.
type reconcileFlags struct {
	delimiter       string
	chunkRows       int
	addFilename     bool
	filenameColumn  string
	rename          []string
	set             []string
	paramsFiles     []string
	drop            []string
	discoverWorkers int
}

func addReconcileFlags(cmd *cobra.Command, f *reconcileFlags, withTransforms bool) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "",
		"Field delimiter: a single character or \"tab\" (default \",\")")
	cmd.Flags().StringSliceVar(&f.rename, "rename", nil,
		"Rename a header column before the union is computed, old=new\n"+
			"(can be specified multiple times)")
	cmd.Flags().IntVar(&f.discoverWorkers, "discover-workers", 0,
		fmt.Sprintf("Headers read concurrently (default %d)", pgstitch.DefaultDiscoverWorkers))
	if !withTransforms {
		return
	}
	cmd.Flags().IntVar(&f.chunkRows, "chunk-rows", 0,
		fmt.Sprintf("Rows per batch; bounds memory use (default %d)", pgstitch.DefaultChunkRows))
	cmd.Flags().BoolVar(&f.addFilename, "add-filename", false,
		"Append the source path of every row as an extra column")
	cmd.Flags().StringVar(&f.filenameColumn, "filename-column", "",
		fmt.Sprintf("Name of the --add-filename column (default %q)", pgstitch.DefaultFilenameColumn))
	cmd.Flags().StringSliceVar(&f.set, "set", nil,
		"Add a constant column, name=value (can be specified multiple times)\n"+
			"Overrides --params-file and pgstitch.yaml params")
	cmd.Flags().StringSliceVar(&f.paramsFiles, "params-file", nil,
		"Load constant columns from .env files (later files override earlier ones)")
	cmd.Flags().StringSliceVar(&f.drop, "drop", nil,
		"Remove a column from the output (can be specified multiple times)")
}

// options merges flags over pgstitch.yaml into ReconcileOptions, including
// the transform built from --drop, --set, --params-file and yaml params.
func (f *reconcileFlags) options(cmd *cobra.Command, projectCfg *config.ProjectConfig) (pgstitch.ReconcileOptions, error) {
	var opts pgstitch.ReconcileOptions
	changed := cmd.Flags().Changed
	yaml := projectCfg
	if yaml == nil {
		yaml = &config.ProjectConfig{}
	}

	delim := f.delimiter
	if !changed("delimiter") && yaml.Delimiter != "" {
		delim = yaml.Delimiter
	}
	d, err := config.ParseDelimiter(delim)
	if err != nil {
		return opts, err
	}
	opts.Delimiter = d

	opts.ChunkRows = f.chunkRows
	if !changed("chunk-rows") && yaml.ChunkRows != 0 {
		opts.ChunkRows = yaml.ChunkRows
	}
	opts.AddFilename = f.addFilename || (!changed("add-filename") && yaml.AddFilename)
	opts.FilenameColumn = f.filenameColumn
	if !changed("filename-column") && yaml.FilenameColumn != "" {
		opts.FilenameColumn = yaml.FilenameColumn
	}
	opts.DiscoverWorkers = f.discoverWorkers
	if !changed("discover-workers") && yaml.DiscoverWorkers != 0 {
		opts.DiscoverWorkers = yaml.DiscoverWorkers
	}

	flagRename, err := params.ParseRename(f.rename)
	if err != nil {
		return opts, err
	}
	if rename := params.Merge(yaml.Rename, flagRename); len(rename) > 0 {
		opts.Rename = rename
	}

	values, err := params.Resolve(params.Sources{Files: f.paramsFiles, Config: yaml.Params, Pairs: f.set})
	if err != nil {
		return opts, err
	}
	constants, err := reconcile.ConstantColumns(params.Constants(values))
	if err != nil {
		return opts, err
	}
	opts.Transform = pgstitch.ChainTransforms(reconcile.DropColumns(f.drop...), constants)

	return opts, nil
}
