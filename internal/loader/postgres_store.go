package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vvka-141/pgstitch/internal/retry"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// relationQuery reads the kind and columns of the relation $1 resolves to
// through search_path. No rows means no such relation.
const relationQuery = `
SELECT c.relkind::text, a.attname::text
FROM pg_class c
LEFT JOIN pg_attribute a
  ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
WHERE c.oid = to_regclass($1)
ORDER BY a.attnum`

const schemaQuery = `
SELECT n.nspname::text
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.oid = to_regclass($1)`

// PostgresStore implements pgstitch.TableStore over a pgx connection pool.
//
// Thread-Safety: CopyRows acquires a dedicated connection per call; the
// store itself keeps no mutable state.
type PostgresStore struct {
	conn     pgstitch.DBConnection
	executor *retry.Executor
	logger   pgstitch.Logger
	closeFn  func()
}

// NewPostgresStore creates a store on conn. closeFn, if not nil, runs on Close.
// Panics if conn or logger is nil.
func NewPostgresStore(conn pgstitch.DBConnection, logger pgstitch.Logger, closeFn func()) *PostgresStore {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &PostgresStore{
		conn:     conn,
		executor: newStatementExecutor(logger),
		logger:   logger,
		closeFn:  closeFn,
	}
}

func newStatementExecutor(logger pgstitch.Logger) *retry.Executor {
	return retry.NewDefaultExecutor().WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Verbose("statement attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
	})
}

// ResolveTable qualifies an unqualified name with the schema of the existing
// relation it resolves to, so later statements address the same relation
// whatever search_path holds. Absent and qualified names are returned as is.
func (s *PostgresStore) ResolveTable(ctx context.Context, table string) (string, error) {
	if schema, _ := SplitTableName(table); schema != "" {
		return table, nil
	}
	var schema string
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		schema = ""
		rows, err := s.conn.Query(ctx, schemaQuery, QuoteTable(table))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			if err := rows.Scan(&schema); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve table %s: %w", table, err)
	}
	if schema == "" || strings.Contains(schema, ".") {
		return table, nil
	}
	return schema + "." + table, nil
}

// TableColumns reads the columns of the relation table resolves to. A view,
// sequence or other non-table relation of that name is a configuration error.
func (s *PostgresStore) TableColumns(ctx context.Context, table string) ([]string, bool, error) {
	var (
		columns []string
		kind    string
	)
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		columns, kind = nil, ""
		rows, err := s.conn.Query(ctx, relationQuery, QuoteTable(table))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var col pgtype.Text
			if err := rows.Scan(&kind, &col); err != nil {
				return err
			}
			if col.Valid {
				columns = append(columns, col.String)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	switch kind {
	case "":
		return nil, false, nil
	case "r", "p":
		return columns, true, nil
	}
	return nil, true, fmt.Errorf("%s is a %s, not a table: %w", table, relationKind(kind), pgstitch.ErrInvalidConfig)
}

func relationKind(kind string) string {
	switch kind {
	case "v":
		return "view"
	case "m":
		return "materialized view"
	case "f":
		return "foreign table"
	case "S":
		return "sequence"
	case "i", "I":
		return "index"
	case "c":
		return "composite type"
	}
	return "relation of kind " + kind
}

func (s *PostgresStore) DropTable(ctx context.Context, table string) error {
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		_, err := s.conn.Exec(ctx, dropTableSQL(table))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) CreateTable(ctx context.Context, table string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("cannot create table %s without columns: %w", table, pgstitch.ErrInvalidConfig)
	}
	schema, _ := SplitTableName(table)
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		if schema != "" {
			if _, err := s.conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(schema)); err != nil {
				return err
			}
		}
		_, err := s.conn.Exec(ctx, createTableSQL(table, columns))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// CopyRows streams rows through COPY FROM STDIN on a dedicated connection.
// It is not retried.
func (s *PostgresStore) CopyRows(ctx context.Context, table string, columns []string, rows [][]pgstitch.Cell) (int64, error) {
	var buf bytes.Buffer
	if err := writeCopyCSV(&buf, rows); err != nil {
		return 0, err
	}

	conn, err := s.conn.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	sql := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv)", QuoteTable(table), QuoteColumns(columns))
	tag, err := conn.CopyFrom(ctx, &buf, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MaxIdentifierBytes reports the server's identifier length limit.
func (s *PostgresStore) MaxIdentifierBytes() int {
	return PostgresMaxIdentifierBytes
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
		s.closeFn = nil
	}
	return nil
}

var _ pgstitch.TableStore = (*PostgresStore)(nil)
