package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// Preview returns up to n reconciled rows from the start of each readable
// file, one batch per file that has rows, along with the discovery.
// The transform is applied as it would be during a load. The discovery is
// returned even when no file could be read, so callers can list the failures.
func (r *Reconciler) Preview(ctx context.Context, paths []string, n int) (*Discovery, []*pgstitch.UnifiedBatch, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("preview rows must be positive, got %d: %w", n, pgstitch.ErrInvalidConfig)
	}

	d, err := r.Discover(ctx, paths)
	if err != nil {
		return d, nil, err
	}
	comb, err := r.CombineDiscovery(d)
	if err != nil {
		return d, nil, err
	}
	defer comb.Close()
	comb.chunkRows = n
	comb.maxChunks = 1

	var out []*pgstitch.UnifiedBatch
	for {
		b, err := comb.Next(ctx)
		if errors.Is(err, io.EOF) {
			return d, out, nil
		}
		if err != nil {
			return d, out, err
		}
		out = append(out, b)
	}
}
