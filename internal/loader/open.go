package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/vvka-141/pgstitch/internal/db"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// OpenStore connects to the database described by cfg and returns its
// TableStore. The caller must Close the store.
func OpenStore(ctx context.Context, cfg *pgstitch.ConnectionConfig, logger pgstitch.Logger) (pgstitch.TableStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("connection is required: %w", pgstitch.ErrInvalidConfig)
	}

	if cfg.Driver == pgstitch.DriverSQLite {
		sqlDB, err := db.OpenSQLite(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pgstitch.ErrConnectionFailed, err)
		}
		logger.Verbose("Connected to SQLite database %s", cfg.Database)
		return NewSQLiteStore(sqlDB, logger), nil
	}

	connector, err := db.NewConnector(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := connector.Connect(ctx)
	if err != nil {
		if c, ok := connector.(io.Closer); ok {
			c.Close()
		}
		return nil, fmt.Errorf("%w: %w", pgstitch.ErrConnectionFailed, err)
	}
	logger.Verbose("Connected to %s", db.Describe(cfg))

	closeFn := func() {
		pool.Close()
		if c, ok := connector.(io.Closer); ok {
			c.Close()
		}
	}
	return NewPostgresStore(db.NewPoolAdapter(pool), logger, closeFn), nil
}
