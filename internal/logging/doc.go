// Package logging provides concrete implementations of the pgstitch.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: plain lines on stderr, verbose output gated by -v
//   - ZapLogger: JSON lines through go.uber.org/zap (--log-format json)
//   - NullLogger: discards all messages
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
