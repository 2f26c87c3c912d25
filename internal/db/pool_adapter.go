package db

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// PoolAdapter adapts *pgxpool.Pool to pgstitch.DBConnection.
//
// Thread-Safety: Safe for concurrent use (pgxpool.Pool is thread-safe).
type PoolAdapter struct {
	pool *pgxpool.Pool
}

// NewPoolAdapter wraps pool.
func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	return &PoolAdapter{pool: pool}
}

func (p *PoolAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p *PoolAdapter) Query(ctx context.Context, sql string, args ...any) (pgstitch.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *PoolAdapter) Acquire(ctx context.Context) (pgstitch.PooledConnection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pooledConnAdapter{conn: conn}, nil
}

// Close closes the underlying pool.
func (p *PoolAdapter) Close() {
	p.pool.Close()
}

type pooledConnAdapter struct {
	conn *pgxpool.Conn
}

func (p *pooledConnAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.conn.Exec(ctx, sql, args...)
}

// CopyFrom uses the low-level COPY protocol so the caller controls the
// text encoding of every value.
func (p *pooledConnAdapter) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return p.conn.Conn().PgConn().CopyFrom(ctx, r, sql)
}

func (p *pooledConnAdapter) Release() {
	p.conn.Release()
}

var _ pgstitch.DBConnection = (*PoolAdapter)(nil)
