package tui

import (
	"os"

	"golang.org/x/term"
)

// Mode represents the interaction mode for pgstitch.
type Mode int

const (
	// ModeNonInteractive is used for CI/CD pipelines, scripts, and piped input.
	ModeNonInteractive Mode = iota
	// ModeInteractive is used when a human is at the terminal.
	ModeInteractive
)

// NonInteractiveEnvVar forces plain output when set to "1".
const NonInteractiveEnvVar = "PGSTITCH_NON_INTERACTIVE"

// DetectMode determines whether pgstitch should run in interactive or non-interactive mode.
//
// Returns ModeNonInteractive if:
//   - stdin or stderr is not a terminal (piped input, CI/CD, redirected logs)
//   - PGSTITCH_NON_INTERACTIVE=1 is set
//   - CI is set (common CI/CD convention)
//   - NO_COLOR is set
//
// Returns ModeInteractive otherwise.
func DetectMode() Mode {
	if os.Getenv(NonInteractiveEnvVar) == "1" {
		return ModeNonInteractive
	}
	if os.Getenv("CI") != "" {
		return ModeNonInteractive
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModeNonInteractive
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ModeNonInteractive
	}
	// Progress is drawn on stderr so stdout stays clean for exported CSV.
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return ModeNonInteractive
	}

	return ModeInteractive
}

// IsInteractive is a convenience function that returns true if running in interactive mode.
func IsInteractive() bool {
	return DetectMode() == ModeInteractive
}
