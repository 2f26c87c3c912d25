package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vvka-141/pgstitch/internal/config"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// GranularConnFlags carries the libpq-style CLI flags (-h, -p, -U, -d).
//
// Password is deliberately not a flag: use $PGPASSWORD or a connection string.
type GranularConnFlags struct {
	Host        string
	Port        int
	Username    string
	Database    string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

// IsEmpty reports whether no server-selecting flag was given. Database alone
// may override the database of a connection string, so it is not counted.
func (g *GranularConnFlags) IsEmpty() bool {
	return g == nil || (g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == "")
}

// CloudFlags carries cloud authentication flags.
// The Azure client secret is only read from $AZURE_CLIENT_SECRET.
type CloudFlags struct {
	AuthMethod     string // "", "standard", "cert", "aws", "google", "azure"
	AzureTenantID  string
	AzureClientID  string
	AWSRegion      string
	GoogleInstance string
}

// EnvVars holds the environment variables connection resolution reads.
type EnvVars struct {
	PGSTITCH_CONNECTION_STRING string
	DATABASE_URL               string

	PGHOST        string
	PGPORT        string
	PGUSER        string
	PGPASSWORD    string
	PGDATABASE    string
	PGSSLMODE     string
	PGSSLCERT     string
	PGSSLKEY      string
	PGSSLROOTCERT string

	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
	AWS_REGION          string
}

// LoadFromEnvironment snapshots the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGSTITCH_CONNECTION_STRING: os.Getenv("PGSTITCH_CONNECTION_STRING"),
		DATABASE_URL:               os.Getenv("DATABASE_URL"),
		PGHOST:                     os.Getenv("PGHOST"),
		PGPORT:                     os.Getenv("PGPORT"),
		PGUSER:                     os.Getenv("PGUSER"),
		PGPASSWORD:                 os.Getenv("PGPASSWORD"),
		PGDATABASE:                 os.Getenv("PGDATABASE"),
		PGSSLMODE:                  os.Getenv("PGSSLMODE"),
		PGSSLCERT:                  os.Getenv("PGSSLCERT"),
		PGSSLKEY:                   os.Getenv("PGSSLKEY"),
		PGSSLROOTCERT:              os.Getenv("PGSSLROOTCERT"),
		AZURE_TENANT_ID:            os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:            os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:        os.Getenv("AZURE_CLIENT_SECRET"),
		AWS_REGION:                 os.Getenv("AWS_REGION"),
	}
}

// ParseAuthMethod maps a CLI/YAML spelling to an AuthMethod.
func ParseAuthMethod(s string) (pgstitch.AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return pgstitch.AuthMethodStandard, nil
	case "cert", "certificate", "mtls":
		return pgstitch.AuthMethodCertificate, nil
	case "aws", "aws-iam":
		return pgstitch.AuthMethodAWSIAM, nil
	case "google", "gcp", "google-iam":
		return pgstitch.AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return pgstitch.AuthMethodAzureEntraID, nil
	}
	return pgstitch.AuthMethodStandard, fmt.Errorf("unknown auth method %q: %w", s, pgstitch.ErrUnsupportedAuthMethod)
}

// ResolveConnectionParams resolves the target connection with this precedence:
//
//  1. --connection flag
//  2. $PGSTITCH_CONNECTION_STRING, then $DATABASE_URL (only without granular flags)
//  3. granular flags, each falling back to PG* env, then pgstitch.yaml, then defaults
//
// Cloud flags and env then select the authentication method. Passing both
// --connection and granular flags is an error.
func ResolveConnectionParams(
	connStringFlag string,
	granular *GranularConnFlags,
	cloud *CloudFlags,
	env *EnvVars,
	project *config.ProjectConfig,
) (*pgstitch.ConnectionConfig, error) {
	if granular == nil {
		granular = &GranularConnFlags{}
	}
	if cloud == nil {
		cloud = &CloudFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}

	if connStringFlag != "" && !granular.IsEmpty() {
		return nil, fmt.Errorf("cannot specify both --connection and granular flags (-h, -p, -U)\n"+
			"Choose one approach:\n"+
			"  1. Connection string: --connection \"postgresql://user@localhost:5432/mydb\"\n"+
			"  2. Granular flags: -h localhost -p 5432 -U myuser -d mydb\n"+
			"  3. Environment variables: export PGHOST=localhost PGUSER=myuser: %w", pgstitch.ErrInvalidConfig)
	}

	connStr := connStringFlag
	if connStr == "" && granular.IsEmpty() {
		connStr = firstNonEmpty(env.PGSTITCH_CONNECTION_STRING, env.DATABASE_URL)
	}

	var cfg *pgstitch.ConnectionConfig
	if connStr != "" {
		parsed, err := ParseConnectionString(connStr)
		if err != nil {
			return nil, fmt.Errorf("invalid connection string: %w: %w", pgstitch.ErrInvalidConfig, err)
		}
		cfg = parsed
		if cfg.Driver == pgstitch.DriverPostgres {
			if granular.Database != "" {
				cfg.Database = granular.Database
			}
			if cfg.Password == "" {
				cfg.Password = env.PGPASSWORD
			}
		}
	} else {
		parsed, err := resolveFromGranularParams(granular, env, project)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}

	if cfg.Driver == pgstitch.DriverSQLite {
		return cfg, nil
	}
	if cfg.AppName == "" {
		cfg.AppName = pgstitch.DefaultAppName
	}
	if err := applyAuth(cfg, cloud, env, project); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyAuth(cfg *pgstitch.ConnectionConfig, cloud *CloudFlags, env *EnvVars, project *config.ProjectConfig) error {
	var pc config.ConnectionConfig
	if project != nil {
		pc = project.Connection
	}

	method, err := ParseAuthMethod(firstNonEmpty(cloud.AuthMethod, pc.AuthMethod))
	if err != nil {
		return err
	}

	tenantID := firstNonEmpty(cloud.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
	clientID := firstNonEmpty(cloud.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)
	if method == pgstitch.AuthMethodStandard && (tenantID != "" || clientID != "") {
		method = pgstitch.AuthMethodAzureEntraID
	}
	if method == pgstitch.AuthMethodStandard && cfg.SSLCert != "" && cfg.SSLKey != "" {
		method = pgstitch.AuthMethodCertificate
	}

	cfg.AuthMethod = method
	switch method {
	case pgstitch.AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	case pgstitch.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(cloud.AWSRegion, env.AWS_REGION, pc.AWSRegion)
	case pgstitch.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(cloud.GoogleInstance, pc.GoogleInstance)
	case pgstitch.AuthMethodCertificate:
		if cfg.SSLCert == "" || cfg.SSLKey == "" {
			return fmt.Errorf("certificate auth requires --sslcert and --sslkey: %w", pgstitch.ErrInvalidConfig)
		}
	}
	return nil
}

// resolveFromGranularParams applies flag > env > pgstitch.yaml > default per field.
func resolveFromGranularParams(flags *GranularConnFlags, env *EnvVars, project *config.ProjectConfig) (*pgstitch.ConnectionConfig, error) {
	var pc config.ConnectionConfig
	if project != nil {
		pc = project.Connection
	}

	cfg := &pgstitch.ConnectionConfig{
		Driver:           pgstitch.DriverPostgres,
		AuthMethod:       pgstitch.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
		Host:             firstNonEmpty(flags.Host, env.PGHOST, pc.Host, "localhost"),
		Username:         firstNonEmpty(flags.Username, env.PGUSER, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME")),
		Password:         env.PGPASSWORD,
		Database:         firstNonEmpty(flags.Database, env.PGDATABASE, pc.Database, "postgres"),
		SSLMode:          firstNonEmpty(flags.SSLMode, env.PGSSLMODE, pc.SSLMode, "prefer"),
		SSLCert:          firstNonEmpty(flags.SSLCert, env.PGSSLCERT, pc.SSLCert),
		SSLKey:           firstNonEmpty(flags.SSLKey, env.PGSSLKEY, pc.SSLKey),
		SSLRootCert:      firstNonEmpty(flags.SSLRootCert, env.PGSSLROOTCERT, pc.SSLRootCert),
	}

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", env.PGPORT, pgstitch.ErrInvalidConfig)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = 5432
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
