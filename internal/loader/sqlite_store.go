package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vvka-141/pgstitch/internal/retry"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// SQLiteStore implements pgstitch.TableStore on database/sql with the
// modernc.org/sqlite driver. A batch is written in one transaction through a
// prepared INSERT, which is SQLite's bulk path.
type SQLiteStore struct {
	db       *sql.DB
	executor *retry.Executor
}

// NewSQLiteStore wraps db. Close closes db.
func NewSQLiteStore(db *sql.DB, logger pgstitch.Logger) *SQLiteStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &SQLiteStore{db: db, executor: newStatementExecutor(logger)}
}

// ResolveTable returns table unchanged; SQLite has no search path.
func (s *SQLiteStore) ResolveTable(_ context.Context, table string) (string, error) {
	return table, nil
}

// TableColumns reads the columns of table. A view of that name is a
// configuration error.
func (s *SQLiteStore) TableColumns(ctx context.Context, table string) ([]string, bool, error) {
	schema, name := SplitTableName(table)
	if schema == "" {
		schema = "main"
	}

	var (
		columns []string
		kind    string
	)
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		columns, kind = nil, ""
		err := s.db.QueryRowContext(ctx,
			"SELECT type FROM "+quoteIdent(schema)+".sqlite_master WHERE name = ? AND type IN ('table', 'view')", name).Scan(&kind)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?, ?) ORDER BY cid", name, schema)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				return err
			}
			columns = append(columns, col)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	switch kind {
	case "":
		return nil, false, nil
	case "table":
		return columns, true, nil
	}
	return nil, true, fmt.Errorf("%s is a %s, not a table: %w", table, kind, pgstitch.ErrInvalidConfig)
}

func (s *SQLiteStore) DropTable(ctx context.Context, table string) error {
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, dropTableSQL(table))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) CreateTable(ctx context.Context, table string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("cannot create table %s without columns: %w", table, pgstitch.ErrInvalidConfig)
	}
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, createTableSQL(table, columns))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) CopyRows(ctx context.Context, table string, columns []string, rows [][]pgstitch.Cell) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteTable(table), QuoteColumns(columns), placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	var n int64
	for _, row := range rows {
		for i, cell := range row {
			if cell.Valid {
				args[i] = cell.String
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("row %d: %w", n+1, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ pgstitch.TableStore = (*SQLiteStore)(nil)
