package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// ForcedApprover approves a table replacement after a short countdown.
// Used when --force is given; Ctrl+C during the countdown cancels the run.
type ForcedApprover struct {
	verbose   bool
	countdown time.Duration
	output    io.Writer
	sleepFn   func(time.Duration)
}

// NewForcedApprover creates a ForcedApprover writing to stderr.
func NewForcedApprover(verbose bool) pgstitch.Approver {
	return &ForcedApprover{
		verbose:   verbose,
		countdown: pgstitch.DefaultForceApprovalCountdown,
		output:    os.Stderr,
		sleepFn:   time.Sleep,
	}
}

// RequestApproval prints a warning naming the table and counts down before approving.
func (a *ForcedApprover) RequestApproval(ctx context.Context, table string) (bool, error) {
	fmt.Fprintf(a.output, "\nDANGER: table %s will be DROPPED and recreated from the input files.\n", table)
	if a.verbose {
		fmt.Fprintln(a.output, "Every row currently in the table is lost.")
	}

	seconds := int(a.countdown.Seconds())
	if a.countdown == 0 {
		seconds = int(pgstitch.DefaultForceApprovalCountdown.Seconds())
	}
	for i := seconds; i > 0; i-- {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(a.output)
			return false, err
		}
		fmt.Fprintf(a.output, "\rReplacing in: %d seconds... (Press Ctrl+C to cancel)", i)
		a.sleepFn(time.Second)
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintln(a.output)
		return false, err
	}

	fmt.Fprintf(a.output, "\r✓ Proceeding with replacement of %s...                        \n", table)
	return true, nil
}

var _ pgstitch.Approver = (*ForcedApprover)(nil)
