package pgstitch

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBConnection abstracts the PostgreSQL operations the bulk loader needs.
// It keeps pgxpool out of the loader so table stores can be tested with fakes.
//
// Thread-Safety: Implementations should follow their underlying connection's
// thread-safety guarantees. Connection pool implementations are typically safe
// for concurrent use.
type DBConnection interface {
	// Exec executes a statement without returning any rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Query executes a query returning rows. The caller must Close the result.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Acquire obtains a dedicated connection for the COPY channel.
	// Caller must call Release() on the returned PooledConnection when done.
	Acquire(ctx context.Context) (PooledConnection, error)
}

// Rows is the subset of pgx.Rows the loader reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// PooledConnection represents a connection acquired from a pool.
// The caller must call Release() when done to return it to the pool.
type PooledConnection interface {
	// Exec executes a statement on this specific connection.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// CopyFrom streams r into a COPY ... FROM STDIN statement.
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)

	// Release returns the connection to the pool.
	// After calling Release, the connection should not be used.
	Release()
}
