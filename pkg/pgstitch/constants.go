package pgstitch

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Load/discovery completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitApprovalDenied  = 12 // User denied table replacement
	ExitLoadFailed      = 13 // Bulk copy channel rejected a batch
	ExitNoInput         = 14 // No input files, or none readable
	ExitSchemaConflict  = 15 // Target table incompatible with the batches
)

const (
	// DefaultChunkRows bounds the number of rows held in memory per batch.
	// A run never materializes more than one chunk of one file at a time.
	DefaultChunkRows = 10_000

	// MaxChunkRows caps --chunk-rows so a typo cannot defeat the memory bound.
	MaxChunkRows = 5_000_000

	// DefaultFilenameColumn is the column appended when the source path is recorded.
	DefaultFilenameColumn = "filepath"

	// DefaultDelimiter is the field separator for input files.
	DefaultDelimiter = ','

	// DefaultDiscoverWorkers keeps header discovery sequential unless asked otherwise.
	DefaultDiscoverWorkers = 1

	// DefaultForceApprovalCountdown is the countdown duration before force approval proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// DefaultTimeout protects a whole run against indefinite hangs.
	DefaultTimeout = 30 * time.Minute

	// DefaultAppName is reported to PostgreSQL as application_name.
	DefaultAppName = "pgstitch"

	// ConfigFileName is the project configuration file looked up in the working directory.
	ConfigFileName = "pgstitch.yaml"
)
