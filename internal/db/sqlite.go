package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vvka-141/pgstitch/internal/retry"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the SQLite database at path and verifies it answers.
// A single connection is kept so ":memory:" databases survive across calls.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	err = retry.NewDefaultExecutor().Execute(ctx, func(ctx context.Context) error {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			return err
		}
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}
	return db, nil
}
