package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgstitch/internal/retry"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// TokenProvider acquires short-lived cloud tokens used as the PostgreSQL password.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logs. Must not include secrets.
	String() string
}

// tokenExpiryWarning is the remaining lifetime below which a token is logged
// as close to expiry. A long COPY keeps its connection past token expiry, but
// a reconnect would fail.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector authenticates with a token from a TokenProvider
// (AWS IAM, Azure Entra ID). A fresh token is fetched on every attempt.
type TokenBasedConnector struct {
	config       *pgstitch.ConnectionConfig
	provider     TokenProvider
	providerName string
	executor     *retry.Executor
	logger       pgstitch.Logger
}

// NewTokenBasedConnector creates a connector that uses provider for authentication.
func NewTokenBasedConnector(config *pgstitch.ConnectionConfig, provider TokenProvider, providerName string, logger pgstitch.Logger) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:       config,
		provider:     provider,
		providerName: providerName,
		executor:     newConnectExecutor(logger),
		logger:       logger,
	}
}

// Connect acquires a token and opens a pool with it.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return retry.Do(ctx, c.executor, func(ctx context.Context) (*pgxpool.Pool, error) {
		token, expiresOn, err := c.provider.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}
		c.logger.Verbose("acquired %s token via %s", c.providerName, c.provider)
		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
			c.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
		}

		withToken := *c.config
		withToken.Password = token
		return openPool(ctx, BuildConnectionString(&withToken), c.config, c.logger, nil)
	})
}
