// Package services wires the scanner, reconciler, loader and export sinks
// into the runs the CLI offers: discover, load and export.
//
// A Pipeline owns no connection. Load opens a TableStore through the
// injected StoreOpener and closes it before returning, so one Pipeline can
// serve several runs. It is not safe for concurrent runs.
package services
