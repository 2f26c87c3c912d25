package loader

import (
	"context"
	"fmt"
	"slices"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// prepareTable applies the conflict policy. created reports whether the
// table was created (or recreated) by this call.
func (l *Loader) prepareTable(ctx context.Context, target pgstitch.LoadTarget, columns []string) (created bool, err error) {
	if len(columns) == 0 {
		return false, fmt.Errorf("no columns to load into %s: %w", target.Table, pgstitch.ErrNoReadableFiles)
	}
	if lim, ok := l.store.(identifierLimiter); ok {
		if err := checkIdentifierLengths(target.Table, columns, lim.MaxIdentifierBytes()); err != nil {
			return false, err
		}
	}

	existing, exists, err := l.store.TableColumns(ctx, target.Table)
	if err != nil {
		return false, err
	}

	switch target.IfExists {
	case pgstitch.IfExistsFail:
		if exists {
			return false, fmt.Errorf("table %s: %w (use --if-exists replace or append)", target.Table, pgstitch.ErrTableExists)
		}

	case pgstitch.IfExistsReplace:
		if exists {
			l.logger.Verbose("Table '%s' exists. Requesting approval for replace.", target.Table)
			approved, err := l.approver.RequestApproval(ctx, target.Table)
			if err != nil {
				return false, fmt.Errorf("approval request failed: %w", err)
			}
			if !approved {
				return false, pgstitch.ErrApprovalDenied
			}
			l.logger.Verbose("Dropping table '%s'", target.Table)
			if err := l.store.DropTable(ctx, target.Table); err != nil {
				return false, err
			}
		}

	case pgstitch.IfExistsAppend:
		if exists {
			if missing := missingColumns(existing, columns); len(missing) > 0 {
				return false, &pgstitch.SchemaConflictError{Table: target.Table, MissingColumns: missing}
			}
			l.logger.Verbose("Appending to existing table '%s'", target.Table)
			return false, nil
		}

	default:
		return false, fmt.Errorf("invalid if-exists policy %v: %w", target.IfExists, pgstitch.ErrInvalidConfig)
	}

	l.logger.Verbose("Creating table '%s' with %d column(s)", target.Table, len(columns))
	if err := l.store.CreateTable(ctx, target.Table, columns); err != nil {
		return false, err
	}
	return true, nil
}

// missingColumns returns the wanted columns the table does not have.
func missingColumns(have, want []string) []string {
	var out []string
	for _, c := range want {
		if !slices.Contains(have, c) {
			out = append(out, c)
		}
	}
	return out
}
