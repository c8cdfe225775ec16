package logger

import "context"

// LoggerContext accumulates attributes over the course of an operation so
// that every subsequent log line carries them without re-stating them.
type LoggerContext struct {
	logger *Logger
	attrs  []any
}

// NewLoggerContext wraps l in a LoggerContext.
func NewLoggerContext(l *Logger) *LoggerContext {
	return &LoggerContext{logger: l}
}

// Add appends key/value pairs that will be attached to every later record.
func (lc *LoggerContext) Add(args ...any) {
	lc.attrs = append(lc.attrs, args...)
}

func (lc *LoggerContext) merge(args []any) []any {
	out := make([]any, 0, len(lc.attrs)+len(args))
	out = append(out, lc.attrs...)
	return append(out, args...)
}

// Debug logs at LevelDebug with the accumulated attributes.
func (lc *LoggerContext) Debug(ctx context.Context, msg string, args ...any) {
	lc.logger.Debugc(ctx, 4, msg, lc.merge(args)...)
}

// Info logs at LevelInfo with the accumulated attributes.
func (lc *LoggerContext) Info(ctx context.Context, msg string, args ...any) {
	lc.logger.Infoc(ctx, 4, msg, lc.merge(args)...)
}

// Warn logs at LevelWarn with the accumulated attributes.
func (lc *LoggerContext) Warn(ctx context.Context, msg string, args ...any) {
	lc.logger.Warnc(ctx, 4, msg, lc.merge(args)...)
}

// Error logs at LevelError with the accumulated attributes.
func (lc *LoggerContext) Error(ctx context.Context, msg string, args ...any) {
	lc.logger.Errorc(ctx, 4, msg, lc.merge(args)...)
}
