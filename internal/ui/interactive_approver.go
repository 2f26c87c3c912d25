package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// InteractiveApprover asks the user to type the table name before a
// replacement proceeds.
type InteractiveApprover struct {
	verbose bool
	input   io.Reader
	output  io.Writer
}

// NewInteractiveApprover creates an InteractiveApprover on stdin and stderr.
func NewInteractiveApprover(verbose bool) pgstitch.Approver {
	return &InteractiveApprover{verbose: verbose, input: os.Stdin, output: os.Stderr}
}

// RequestApproval returns true only when the typed line equals table.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, table string) (bool, error) {
	fmt.Fprintf(a.output, "\n⚠️  WARNING: You are about to DROP and RECREATE the table '%s'\n", table)
	fmt.Fprintln(a.output, "This will permanently delete all rows currently in it!")
	fmt.Fprintf(a.output, "\nTo confirm, type the table name '%s' and press Enter: ", table)

	type result struct {
		line string
		err  error
	}
	// Buffered so the reader goroutine never blocks after a cancellation.
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(a.input).ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			ch <- result{err: err}
			return
		}
		ch <- result{line: strings.TrimSpace(line)}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return false, fmt.Errorf("failed to read input: %w", r.err)
		}
		if r.line == table {
			fmt.Fprintln(a.output, "✓ Confirmed. Proceeding with replacement...")
			return true, nil
		}
		fmt.Fprintf(a.output, "✗ Input '%s' does not match table name '%s'. Operation cancelled.\n", r.line, table)
		return false, nil
	}
}

var _ pgstitch.Approver = (*InteractiveApprover)(nil)
