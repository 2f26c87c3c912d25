package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgstitch/internal/retry"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Pool sizing for a load run: one connection streams COPY, one serves
// metadata queries.
const (
	DefaultMaxConns        = 2
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 30 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config, logger pgstitch.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("server notice: %s", notice.Message)
	}
}

// openPool parses connStr, opens a pool and pings it.
func openPool(ctx context.Context, connStr string, cfg *pgstitch.ConnectionConfig, logger pgstitch.Logger, tune func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, logger)
	if tune != nil {
		tune(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	return pool, nil
}

// StandardConnector connects with username/password or client certificates,
// retrying transient failures.
type StandardConnector struct {
	config   *pgstitch.ConnectionConfig
	executor *retry.Executor
	logger   pgstitch.Logger
}

// NewStandardConnector creates a StandardConnector with the default retry policy.
func NewStandardConnector(config *pgstitch.ConnectionConfig, logger pgstitch.Logger) *StandardConnector {
	return &StandardConnector{
		config:   config,
		executor: newConnectExecutor(logger),
		logger:   logger,
	}
}

// Connect establishes a connection pool.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := BuildConnectionString(c.config)
	return retry.Do(ctx, c.executor, func(ctx context.Context) (*pgxpool.Pool, error) {
		return openPool(ctx, connStr, c.config, c.logger, nil)
	})
}

func newConnectExecutor(logger pgstitch.Logger) *retry.Executor {
	return retry.NewDefaultExecutor().WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Verbose("connection attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
	})
}

// NewConnector returns the Connector matching config.AuthMethod.
func NewConnector(config *pgstitch.ConnectionConfig, logger pgstitch.Logger) (pgstitch.Connector, error) {
	if config.Driver != pgstitch.DriverPostgres {
		return nil, fmt.Errorf("%s targets do not use a PostgreSQL connector: %w", config.Driver, pgstitch.ErrInvalidConfig)
	}

	switch config.AuthMethod {
	case pgstitch.AuthMethodStandard, pgstitch.AuthMethodCertificate:
		return NewStandardConnector(config, logger), nil
	case pgstitch.AuthMethodAWSIAM:
		provider, err := NewAWSIAMTokenProvider(fmt.Sprintf("%s:%d", config.Host, config.Port), config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pgstitch.ErrInvalidConfig, err)
		}
		return NewTokenBasedConnector(config, provider, "AWS IAM", logger), nil
	case pgstitch.AuthMethodAzureEntraID:
		provider, err := newAzureProvider(config)
		if err != nil {
			return nil, err
		}
		return NewTokenBasedConnector(config, provider, "Azure", logger), nil
	case pgstitch.AuthMethodGoogleIAM:
		if config.GoogleInstance == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", pgstitch.ErrInvalidConfig)
		}
		if config.Username == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires username (-U): %w", pgstitch.ErrInvalidConfig)
		}
		return NewGoogleCloudSQLConnector(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, pgstitch.ErrUnsupportedAuthMethod)
	}
}

func newAzureProvider(config *pgstitch.ConnectionConfig) (TokenProvider, error) {
	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		return NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
	}
	return NewAzureDefaultCredentialProvider()
}

// wrapConnectionError adds troubleshooting hints to raw pgx connection errors.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	var hint string
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		hint = fmt.Sprintf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port
  - Firewall blocking the connection`, addr, host, port)

	case strings.Contains(errStr, "no such host"):
		hint = fmt.Sprintf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable`, host)

	case strings.Contains(errStr, "password authentication failed"):
		hint = fmt.Sprintf(`password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $PGPASSWORD or the connection string)
  - Wrong username`, database)

	case strings.Contains(errStr, "does not exist"):
		hint = fmt.Sprintf(`database "%s" does not exist

pgstitch creates tables, not databases. Create it first:
  createdb %s`, database, database)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		hint = fmt.Sprintf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets`, addr)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		hint = `SSL/TLS connection error

Possible causes:
  - Server requires SSL but --sslmode is wrong
  - Client certificates missing (check --sslcert, --sslkey)`

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return fmt.Errorf("%s\n\nOriginal error: %w", hint, err)
}
