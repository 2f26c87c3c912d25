package reconcile

import (
	"fmt"

	"github.com/vvka-141/pgstitch/internal/files/filesystem"
	"github.com/vvka-141/pgstitch/internal/logging"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Reconciler discovers headers and combines files according to its options.
// A Reconciler holds no per-run state and may be reused.
type Reconciler struct {
	fsProvider filesystem.Provider
	opts       pgstitch.ReconcileOptions
	logger     pgstitch.Logger
}

// New creates a reconciler. Zero option values are replaced by defaults.
// A nil logger discards output.
func New(provider filesystem.Provider, opts pgstitch.ReconcileOptions, logger pgstitch.Logger) (*Reconciler, error) {
	if provider == nil {
		return nil, fmt.Errorf("filesystem provider is required: %w", pgstitch.ErrInvalidConfig)
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Reconciler{fsProvider: provider, opts: opts, logger: logger}, nil
}

// Options returns the effective options.
func (r *Reconciler) Options() pgstitch.ReconcileOptions {
	return r.opts
}
