package form

import (
	"context"
	"log/slog"
	"time"
)

// LogEvent describes one tracker operation.
type LogEvent struct {
	Op       string
	Path     string
	Duration time.Duration
	Err      error
	Attrs    map[string]any
}

// Logger records tracker events.
type Logger interface {
	LogEvent(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvent implements Logger.
func (f LoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvent(LogEvent) {}

// SlogLogger forwards events to a slog.Logger. Failed operations log at warn
// level, everything else at debug.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return LoggerFunc(func(event LogEvent) {
		attrs := make([]slog.Attr, 0, len(event.Attrs)+3)
		if event.Path != "" {
			attrs = append(attrs, slog.String("path", event.Path))
		}
		if event.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.Duration))
		}
		for key, value := range event.Attrs {
			attrs = append(attrs, slog.Any(key, value))
		}
		level := slog.LevelDebug
		if event.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		logger.LogAttrs(context.Background(), level, "form "+event.Op, attrs...)
	})
}
