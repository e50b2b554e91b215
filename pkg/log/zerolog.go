package log

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// zerologLogger adapts zerolog.Logger to Logger.
type zerologLogger struct {
	zl zerolog.Logger
}

func newZerologLogger(opts Options, w io.Writer) Logger {
	out := w
	if opts.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	zl := zerolog.New(out).Level(toZerologLevel(opts.Level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (z *zerologLogger) Debug(msg string, fields ...any) { z.zl.Debug().Fields(fields).Msg(msg) }
func (z *zerologLogger) Info(msg string, fields ...any)  { z.zl.Info().Fields(fields).Msg(msg) }
func (z *zerologLogger) Warn(msg string, fields ...any)  { z.zl.Warn().Fields(fields).Msg(msg) }

func (z *zerologLogger) Error(msg string, fields ...any) {
	e := z.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = e.Err(err).Str(StacktraceKey, stacktrace(err))
			if m, ok := err.(zerolog.LogObjectMarshaler); ok {
				e = e.Object("error.detail", m)
			}
			fields = fields[1:]
		}
	}
	e.Fields(fields).Msg(msg)
}

func (z *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: z.zl.With().Fields(fields).Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.zl.GetLevel()
}
