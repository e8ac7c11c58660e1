package api

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger interface
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

var (
	logLevel   = new(slog.LevelVar)
	rootLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
)

// slogLogger implements Logger on top of log/slog
type slogLogger struct {
	l *slog.Logger
}

// NewLogger creates a new logger tagged with the given component prefix
func NewLogger(prefix string) Logger {
	l := rootLogger
	if prefix != "" {
		l = l.With("component", prefix)
	}
	return &slogLogger{l: l}
}

// NewLoggerTo creates a logger writing to w, used by tests and tools that
// need their own output.
func NewLoggerTo(w io.Writer, prefix string, level slog.Leveler) Logger {
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if prefix != "" {
		l = l.With("component", prefix)
	}
	return &slogLogger{l: l}
}

// NopLogger discards everything
func NopLogger() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// SetLogLevel changes the level of every logger created by NewLogger
func SetLogLevel(name string) error {
	level, err := ParseLogLevel(name)
	if err != nil {
		return err
	}
	logLevel.Set(level)
	return nil
}

// ParseLogLevel maps a config level name to a slog level
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "crit":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func (l *slogLogger) Debug(msg string, args ...interface{}) {
	l.l.Debug(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...interface{}) {
	l.l.Info(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...interface{}) {
	l.l.Warn(msg, args...)
}

func (l *slogLogger) Error(msg string, args ...interface{}) {
	l.l.Error(msg, args...)
}

func (l *slogLogger) With(args ...interface{}) Logger {
	return &slogLogger{l: l.l.With(args...)}
}
