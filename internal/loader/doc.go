// Package loader streams column-uniform batches into a database table through
// the database's native bulk channel.
//
// The Loader applies the table policy (fail, replace or append) once, before
// the first row is written, then copies batches one at a time in the order the
// source yields them. A batch is pulled only after the previous one has been
// committed, so memory stays bounded by a single batch.
//
// TableStore implementations:
//   - PostgresStore: COPY ... FROM STDIN (FORMAT csv) over pgx, metadata from
//     information_schema
//   - SQLiteStore: one transaction with a prepared INSERT per batch
//
// Metadata and DDL statements are retried on transient errors. A COPY that
// fails is never retried, since part of it may already have been applied.
package loader
