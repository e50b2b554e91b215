package log

import (
	"context"
	"io"
	"log/slog"
)

// Output formats and backends accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"

	BackendZerolog = "zerolog"
	BackendSlog    = "slog"
)

// Options configures a production logger.
type Options struct {
	Level   Level
	Format  string // FormatConsole or FormatJSON (zerolog backend only)
	Backend string // BackendZerolog (default) or BackendSlog
	// AddSource adds the caller location (slog backend only).
	AddSource bool
}

// New builds a Logger writing to w. Nothing is installed globally; the
// returned handle is passed down explicitly to every operation.
func New(opts Options, w io.Writer) Logger {
	if opts.Backend == BackendSlog {
		return newSlogLogger(opts, w)
	}
	return newZerologLogger(opts, w)
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	l *slog.Logger
}

func newSlogLogger(opts Options, w io.Writer) Logger {
	ops := slog.HandlerOptions{
		AddSource: opts.AddSource,
		Level:     slog.Level(opts.Level),
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			case slog.SourceKey:
				attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(w, &ops)
	return &slogLogger{l: slog.New(WrapByErrFmtHandler(handler))}
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }

func (s *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttr(err)}, fields[1:]...)
		}
	}
	s.l.Error(msg, fields...)
}

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
