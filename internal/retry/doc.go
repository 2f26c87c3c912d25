// Package retry retries transient database failures with exponential backoff.
//
// It wraps connecting, table metadata queries and DDL. A bulk copy already
// streaming rows is never retried, since the database may have applied part
// of it.
//
//	executor := retry.NewDefaultExecutor()
//	pool, err := retry.Do(ctx, executor, func(ctx context.Context) (*pgxpool.Pool, error) {
//	    return pgxpool.NewWithConfig(ctx, cfg)
//	})
//
// Classifier treats PostgreSQL classes 08, 53 and 57, serialization and
// deadlock failures, lock timeouts, SQLite busy errors and temporary network
// errors as transient. Context cancellation is always fatal.
package retry
