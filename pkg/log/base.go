package log

import (
	"context"
	"log/slog"
)

// BaseLogger is the Logger returned by NewLogger. Derived loggers share the
// pipeline and carry their own fields as slog attributes.
type BaseLogger struct {
	p    *pipeline
	slog *slog.Logger
}

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level < l.p.level {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	l.slog.LogAttrs(context.Background(), level.slog(), msg, attrs...)
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = slog.Any(f.Key, f.Value)
	}
	return &BaseLogger{p: l.p, slog: l.slog.With(args...)}
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

func (l *BaseLogger) Level() Level { return l.p.level }

// Slog exposes the same pipeline to libraries that take a *slog.Logger.
func (l *BaseLogger) Slog() *slog.Logger { return l.slog }

// Close closes every output, returning the first error.
func (l *BaseLogger) Close() error {
	var first error
	for _, out := range l.p.outputs {
		if err := out.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
