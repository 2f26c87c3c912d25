package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequireInputs validates that at least one input argument is provided.
// Returns a usage error with examples if none is given.
func RequireInputs(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`requires at least 1 arg(s), only received 0: missing <input>...

Usage: %s

Inputs may be files, directories, glob patterns or s3:// URLs.

Example:
  %s ./exports/*.csv`, cmd.UseLine(), cmd.CommandPath())
	}
	return nil
}
