// Package testinfra starts throwaway PostgreSQL servers for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "pgstitch"

	containerCertDir  = "/tmp/testcontainers-go/postgres"
	sslEntrypointPath = "/usr/local/bin/docker-entrypoint-ssl.bash"
)

// PostgresContainer is a running server and the connection string to reach it.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

func readyStrategy() testcontainers.CustomizeRequestOption {
	// The server logs "ready" once for the init pass and once for real.
	return testcontainers.WithWaitStrategy(
		wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	)
}

func run(ctx context.Context, sslmode string, extra ...testcontainers.ContainerCustomizer) (*PostgresContainer, error) {
	opts := append([]testcontainers.ContainerCustomizer{
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		readyStrategy(),
	}, extra...)

	ctr, err := postgres.Run(ctx, PostgresImage, opts...)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	connStr, err := ctr.ConnectionString(ctx, "sslmode="+sslmode)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}
	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

// StartSimplePostgres starts a password-authenticated server without TLS.
func StartSimplePostgres(ctx context.Context) (*PostgresContainer, error) {
	return run(ctx, "disable")
}

// StartMTLSPostgres starts a server that only accepts TLS connections
// authenticated by a client certificate signed by certPaths.CACert.
func StartMTLSPostgres(ctx context.Context, certPaths *CertPaths) (*PostgresContainer, error) {
	dir := filepath.Dir(certPaths.CACert)
	confPath, err := writeSSLConfig(dir)
	if err != nil {
		return nil, err
	}
	initScript, err := writeMTLSInitScript(dir)
	if err != nil {
		return nil, err
	}

	return run(ctx, "verify-ca",
		postgres.WithSSLCert(certPaths.CACert, certPaths.ServerCert, certPaths.ServerKey),
		postgres.WithConfigFile(confPath),
		postgres.WithInitScripts(initScript),
		// WithSSLCert runs its entrypoint with sh; the script needs bash.
		testcontainers.WithEntrypoint("bash", sslEntrypointPath),
	)
}

func writeSSLConfig(dir string) (string, error) {
	conf := fmt.Sprintf(`listen_addresses = '*'
ssl = on
ssl_cert_file = '%[1]s/server.cert'
ssl_key_file = '%[1]s/server.key'
ssl_ca_file = '%[1]s/ca_cert.pem'
`, containerCertDir)

	path := filepath.Join(dir, "postgresql.conf")
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		return "", fmt.Errorf("write postgresql.conf: %w", err)
	}
	return path, nil
}

func writeMTLSInitScript(dir string) (string, error) {
	script := `#!/bin/sh
cat > "$PGDATA/pg_hba.conf" << 'HBA'
local   all all           trust
hostssl all all 0.0.0.0/0 cert clientcert=verify-full
hostssl all all ::/0      cert clientcert=verify-full
HBA
`
	path := filepath.Join(dir, "init-mtls.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write init script: %w", err)
	}
	return path, nil
}
