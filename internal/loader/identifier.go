package loader

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// PostgresMaxIdentifierBytes is the longest identifier PostgreSQL keeps.
// Longer names are silently truncated by the server.
const PostgresMaxIdentifierBytes = 63

// identifierLimiter is implemented by stores whose database truncates long
// identifiers.
type identifierLimiter interface {
	MaxIdentifierBytes() int
}

// checkIdentifierLengths rejects a table or column name longer than limit
// bytes. A truncated name would no longer match the header it came from.
func checkIdentifierLengths(table string, columns []string, limit int) error {
	schema, name := SplitTableName(table)
	for _, part := range []string{schema, name} {
		if len(part) > limit {
			return fmt.Errorf("table name %q is %d bytes, longer than the %d the database keeps: %w",
				part, len(part), limit, pgstitch.ErrInvalidConfig)
		}
	}
	for _, c := range columns {
		if len(c) > limit {
			return fmt.Errorf("column name %q is %d bytes, longer than the %d the database keeps: %w",
				c, len(c), limit, pgstitch.ErrInvalidConfig)
		}
	}
	return nil
}

// SplitTableName splits "schema.table" into its parts. schema is empty for
// an unqualified name.
func SplitTableName(table string) (schema, name string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

// QuoteTable returns table as a quoted, possibly schema-qualified identifier.
func QuoteTable(table string) string {
	schema, name := SplitTableName(table)
	if schema == "" {
		return pgx.Identifier{name}.Sanitize()
	}
	return pgx.Identifier{schema, name}.Sanitize()
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteColumns returns the quoted column list "a", "b", ...
func QuoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func createTableSQL(table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " TEXT"
	}
	return "CREATE TABLE " + QuoteTable(table) + " (" + strings.Join(defs, ", ") + ")"
}

func dropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + QuoteTable(table)
}
