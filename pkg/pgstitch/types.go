package pgstitch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IfExists is the conflict policy applied when the target table already exists.
type IfExists int

const (
	IfExistsFail    IfExists = iota // Error if the table exists
	IfExistsReplace                 // Drop and recreate the table
	IfExistsAppend                  // Insert into the existing table after a schema check
)

// String returns the CLI spelling of the policy.
func (p IfExists) String() string {
	switch p {
	case IfExistsFail:
		return "fail"
	case IfExistsReplace:
		return "replace"
	case IfExistsAppend:
		return "append"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// ParseIfExists parses "fail", "replace" or "append" (case-insensitive).
func ParseIfExists(s string) (IfExists, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return IfExistsFail, nil
	case "replace":
		return IfExistsReplace, nil
	case "append":
		return IfExistsAppend, nil
	}
	return IfExistsFail, fmt.Errorf("unknown if-exists policy %q (want fail, replace or append): %w", s, ErrInvalidConfig)
}

// LoadTarget names the table a run writes to and how an existing table is treated.
type LoadTarget struct {
	// Table is the target table, optionally schema-qualified ("staging.sales").
	Table string

	// IfExists is the conflict policy.
	IfExists IfExists

	// Connection describes the database holding Table.
	Connection *ConnectionConfig
}

// Validate checks the target for required fields.
func (t LoadTarget) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Table) == "" {
		errs = append(errs, fmt.Errorf("target table is required: %w", ErrInvalidConfig))
	}
	if strings.Count(t.Table, ".") > 1 {
		errs = append(errs, fmt.Errorf("target table %q has too many qualifiers: %w", t.Table, ErrInvalidConfig))
	}
	if t.IfExists < IfExistsFail || t.IfExists > IfExistsAppend {
		errs = append(errs, fmt.Errorf("invalid if-exists policy %d: %w", t.IfExists, ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// BatchResult records one committed (or failed) batch.
type BatchResult struct {
	Sequence int
	Source   string
	Chunk    int
	Rows     int64
}

// LoadReport summarizes a load run.
type LoadReport struct {
	RunID    uuid.UUID
	Table    string
	Policy   IfExists
	Columns  []string
	Batches  []BatchResult
	Rows     int64
	Created  bool // true when the loader created (or recreated) the table
	Duration time.Duration
}

// RowsBySource sums committed rows per source file, preserving first-seen order.
func (r *LoadReport) RowsBySource() ([]string, map[string]int64) {
	var order []string
	counts := make(map[string]int64)
	for _, b := range r.Batches {
		if _, seen := counts[b.Source]; !seen {
			order = append(order, b.Source)
		}
		counts[b.Source] += b.Rows
	}
	return order, counts
}

// ReconcileOptions controls header discovery and combination.
type ReconcileOptions struct {
	// Delimiter is the field separator (default ',').
	Delimiter rune

	// ChunkRows bounds rows per batch (default DefaultChunkRows).
	ChunkRows int

	// AddFilename appends the originating path as an extra column.
	AddFilename bool

	// FilenameColumn names the extra column (default DefaultFilenameColumn).
	FilenameColumn string

	// Rename maps header names to new names before the union is computed.
	Rename map[string]string

	// Transform runs per batch after reindexing.
	Transform Transform

	// DiscoverWorkers bounds concurrent header reads (default 1).
	DiscoverWorkers int
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (o ReconcileOptions) WithDefaults() ReconcileOptions {
	if o.Delimiter == 0 {
		o.Delimiter = DefaultDelimiter
	}
	if o.ChunkRows == 0 {
		o.ChunkRows = DefaultChunkRows
	}
	if o.FilenameColumn == "" {
		o.FilenameColumn = DefaultFilenameColumn
	}
	if o.DiscoverWorkers == 0 {
		o.DiscoverWorkers = DefaultDiscoverWorkers
	}
	return o
}

// Validate checks option ranges. Call on the result of WithDefaults.
func (o ReconcileOptions) Validate() error {
	var errs []error
	if o.ChunkRows < 1 || o.ChunkRows > MaxChunkRows {
		errs = append(errs, fmt.Errorf("chunk rows must be between 1 and %d, got %d: %w", MaxChunkRows, o.ChunkRows, ErrInvalidConfig))
	}
	if o.Delimiter == '"' || o.Delimiter == '\r' || o.Delimiter == '\n' {
		errs = append(errs, fmt.Errorf("invalid delimiter %q: %w", o.Delimiter, ErrInvalidConfig))
	}
	if o.DiscoverWorkers < 1 {
		errs = append(errs, fmt.Errorf("discover workers must be positive, got %d: %w", o.DiscoverWorkers, ErrInvalidConfig))
	}
	for from, to := range o.Rename {
		if from == "" || to == "" {
			errs = append(errs, fmt.Errorf("rename %q=%q has an empty side: %w", from, to, ErrInvalidConfig))
		}
	}
	return errors.Join(errs...)
}

// LoadConfig contains all parameters needed for a load run.
type LoadConfig struct {
	// Inputs are file paths, directories, glob patterns or s3:// URLs.
	Inputs []string

	// Reconcile controls how inputs are combined.
	Reconcile ReconcileOptions

	// Target is the destination table and policy.
	Target LoadTarget

	// Force bypasses interactive approval for IfExistsReplace.
	Force bool

	// DryRun discovers and combines without connecting to a database.
	DryRun bool

	// MaxBatchesPerSecond throttles the bulk channel (0 = unlimited).
	MaxBatchesPerSecond float64

	// Timeout is the global timeout for the whole run.
	Timeout time.Duration

	// Verbose enables detailed logging.
	Verbose bool
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if len(c.Inputs) == 0 {
		errs = append(errs, fmt.Errorf("at least one input is required: %w", ErrEmptyInput))
	}
	if err := c.Target.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !c.DryRun && c.Target.Connection == nil {
		errs = append(errs, fmt.Errorf("connection is required unless dry-run is set: %w", ErrInvalidConfig))
	}
	if err := c.Reconcile.WithDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Force && c.Target.IfExists != IfExistsReplace {
		errs = append(errs, fmt.Errorf("force flag requires --if-exists replace: %w", ErrInvalidConfig))
	}
	if c.MaxBatchesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("max batches per second cannot be negative: %w", ErrInvalidConfig))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// Driver identifies the database family behind a connection.
type Driver int

const (
	DriverPostgres Driver = iota
	DriverSQLite
)

// String returns a human-readable driver name.
func (d Driver) String() string {
	switch d {
	case DriverPostgres:
		return "PostgreSQL"
	case DriverSQLite:
		return "SQLite"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Driver Driver

	Host     string
	Port     int
	Database string // PostgreSQL database name, or SQLite file path
	Username string
	Password string
	SSLMode  string

	// Client certificate settings for AuthMethodCertificate
	SSLCert     string
	SSLKey      string
	SSLRootCert string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance).
	GoogleInstance string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodCertificate                    // mTLS
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodCertificate:
		return "Certificate"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}
