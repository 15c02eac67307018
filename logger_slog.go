package authflow

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the printf style Logger used across
// the package. Formatting verbs are expanded before the record is emitted.
type SlogLogger struct {
	l *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger wraps l. A nil logger uses slog.Default.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(format string, args ...any) {
	s.log(slog.LevelDebug, format, args...)
}

func (s *SlogLogger) Info(format string, args ...any) {
	s.log(slog.LevelInfo, format, args...)
}

func (s *SlogLogger) Warn(format string, args ...any) {
	s.log(slog.LevelWarn, format, args...)
}

func (s *SlogLogger) Error(format string, args ...any) {
	s.log(slog.LevelError, format, args...)
}

// With returns a child logger that always includes the given key-value pairs.
func (s *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{l: s.l.With(args...)}
}

func (s *SlogLogger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.Log(ctx, level, fmt.Sprintf(format, args...))
}
