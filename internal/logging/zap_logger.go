package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger emits structured JSON lines through zap. Messages keep the
// printf contract of pgstitch.Logger; Verbose maps to debug level.
type ZapLogger struct {
	log *zap.SugaredLogger
}

// NewZapLogger builds a production JSON logger writing to stderr.
func NewZapLogger(verbose bool) (*ZapLogger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.DisableStacktrace = true
	base, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return NewZapLoggerFrom(base), nil
}

// NewZapLoggerFrom wraps an existing zap logger.
func NewZapLoggerFrom(base *zap.Logger) *ZapLogger {
	return &ZapLogger{log: base.Sugar()}
}

// With returns a logger that attaches key/value pairs to every entry.
func (l *ZapLogger) With(keysAndValues ...interface{}) *ZapLogger {
	return &ZapLogger{log: l.log.With(keysAndValues...)}
}

// Verbose logs at debug level.
func (l *ZapLogger) Verbose(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

// Info logs at info level.
func (l *ZapLogger) Info(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

// Error logs at error level.
func (l *ZapLogger) Error(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.log.Sync()
}
