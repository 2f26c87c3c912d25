package pgstitch

import "context"

// TableStore is the database side of a load: table metadata, DDL and the
// native bulk channel. PostgreSQL and SQLite each provide one.
type TableStore interface {
	// ResolveTable returns the name every later call should use for table,
	// pinned to the schema of an existing relation where the database
	// resolves unqualified names through a search path.
	ResolveTable(ctx context.Context, table string) (string, error)

	// TableColumns returns the column names of table in ordinal order.
	// exists is false when the table is absent.
	TableColumns(ctx context.Context, table string) (columns []string, exists bool, err error)

	// DropTable drops table if it exists.
	DropTable(ctx context.Context, table string) error

	// CreateTable creates table with one text column per name, in order.
	CreateTable(ctx context.Context, table string, columns []string) error

	// CopyRows writes rows through the bulk channel and returns the number
	// of rows the database accepted.
	CopyRows(ctx context.Context, table string, columns []string, rows [][]Cell) (int64, error)

	// Close releases the store's connection.
	Close() error
}
