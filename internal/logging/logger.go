package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"fbadmin/internal/admin"
)

// Logger wraps slog.Logger to implement the admin.Logger interface.
// Output goes to stderr so command results on stdout stay clean.
type Logger struct {
	slogger *slog.Logger
	attrs   []slog.Attr
}

// NewLogger creates a logger writing to stderr
func NewLogger(config admin.LoggingConfig) (admin.Logger, error) {
	return NewLoggerTo(os.Stderr, config)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(w io.Writer, config admin.LoggingConfig) (admin.Logger, error) {
	level, err := parseLogLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
	}, nil
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues...)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues...)
}

// With returns a new logger with additional fields
func (l *Logger) With(keysAndValues ...any) admin.Logger {
	newAttrs := make([]slog.Attr, len(l.attrs), len(l.attrs)+len(keysAndValues)/2)
	copy(newAttrs, l.attrs)
	newAttrs = append(newAttrs, parseKeyValues(keysAndValues...)...)

	return &Logger{
		slogger: l.slogger,
		attrs:   newAttrs,
	}
}

func (l *Logger) log(level slog.Level, msg string, keysAndValues ...any) {
	ctx := context.Background()
	if !l.slogger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(keysAndValues)/2)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, parseKeyValues(keysAndValues...)...)
	l.slogger.LogAttrs(ctx, level, msg, attrs...)
}

// parseKeyValues converts key-value pairs to slog attributes.
// A trailing key without value and non-string keys are dropped.
func parseKeyValues(keysAndValues ...any) []slog.Attr {
	var attrs []slog.Attr
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		value := keysAndValues[i+1]
		if err, isErr := value.(error); isErr && err != nil {
			value = err.Error()
		}
		attrs = append(attrs, slog.Any(key, value))
	}
	return attrs
}

// parseLogLevel parses a log level string to slog.Level
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}
