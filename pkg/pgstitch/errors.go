package pgstitch

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	report, err := loader.Load(ctx, source, target)
//	if errors.Is(err, pgstitch.ErrSchemaConflict) {
//	    // existing table lacks some of the combined columns
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyInput indicates no input files were given.
	ErrEmptyInput = errors.New("no input files")

	// ErrNoReadableFiles indicates every input file failed header discovery.
	ErrNoReadableFiles = errors.New("no readable input files")

	// ErrUnreadableFile matches any *UnreadableFileError.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrSchemaConflict matches any *SchemaConflictError.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrSchemaDrift indicates a batch arrived with a column set different from
	// the batches before it, typically because a transform changed shape mid-run.
	ErrSchemaDrift = errors.New("batch columns drifted")

	// ErrTableExists indicates the target table exists and the policy is fail.
	ErrTableExists = errors.New("table already exists")

	// ErrLoadFailed matches any *LoadFailureError.
	ErrLoadFailed = errors.New("load failed")

	// ErrApprovalDenied indicates the user denied approval for the operation.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")
)

// UnreadableFileError reports a file whose header could not be opened or parsed.
// It is non-fatal to a run: the file is skipped and reported.
type UnreadableFileError struct {
	Path string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("unreadable file %s: %v", e.Path, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUnreadableFile) match without exposing the cause.
func (e *UnreadableFileError) Is(target error) bool { return target == ErrUnreadableFile }

// SchemaConflictError reports an append into a table that lacks some of the
// batch columns.
type SchemaConflictError struct {
	Table          string
	MissingColumns []string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("table %s is missing column(s) %s required by the input",
		e.Table, strings.Join(e.MissingColumns, ", "))
}

func (e *SchemaConflictError) Is(target error) bool { return target == ErrSchemaConflict }

// LoadFailureError reports a batch rejected by the bulk channel.
// Completed lists the batches committed before the failure; the failed batch
// may have been partially applied.
type LoadFailureError struct {
	Table     string
	Failed    BatchResult
	Completed []BatchResult
	Err       error
}

func (e *LoadFailureError) Error() string {
	if e.Failed.Source == "" {
		return fmt.Sprintf("load into %s failed at batch %d after %d completed batch(es): %v",
			e.Table, e.Failed.Sequence, len(e.Completed), e.Err)
	}
	return fmt.Sprintf("bulk copy into %s failed at batch %d (%s, chunk %d) after %d completed batch(es): %v",
		e.Table, e.Failed.Sequence, e.Failed.Source, e.Failed.Chunk, len(e.Completed), e.Err)
}

func (e *LoadFailureError) Unwrap() error { return e.Err }

func (e *LoadFailureError) Is(target error) bool { return target == ErrLoadFailed }

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrLoadFailed):
		return ExitLoadFailed
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrNoReadableFiles):
		return ExitNoInput
	case errors.Is(err, ErrSchemaConflict), errors.Is(err, ErrTableExists), errors.Is(err, ErrSchemaDrift):
		return ExitSchemaConflict
	}

	errStr := err.Error()
	if strings.HasPrefix(errStr, "unknown flag") ||
		strings.HasPrefix(errStr, "unknown shorthand flag") ||
		strings.HasPrefix(errStr, "unknown command") ||
		strings.HasPrefix(errStr, "accepts ") ||
		strings.HasPrefix(errStr, "requires at least") ||
		strings.HasPrefix(errStr, "required flag") ||
		strings.HasPrefix(errStr, "invalid argument") {
		return ExitUsageError
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
