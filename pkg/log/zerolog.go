package log

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type zerologLogger struct {
	zl zerolog.Logger
}

// Format selects the zerolog output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// NewZerologLogger returns a Logger backed by rs/zerolog writing to w.
// FormatConsole produces human-readable lines, anything else JSON.
func NewZerologLogger(w io.Writer, format Format, level Level) Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(zl zerolog.Logger) Logger {
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

func (z *zerologLogger) Debug(msg string, fields ...any) {
	appendFields(z.zl.Debug(), fields).Msg(msg)
}

func (z *zerologLogger) Info(msg string, fields ...any) {
	appendFields(z.zl.Info(), fields).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, fields ...any) {
	appendFields(z.zl.Warn(), fields).Msg(msg)
}

func (z *zerologLogger) Error(msg string, fields ...any) {
	ev := z.zl.Error()
	err, rest := splitErr(fields)
	if err != nil {
		ev = ev.Err(err)
		var m zerolog.LogObjectMarshaler
		if errors.As(err, &m) {
			ev = ev.EmbedObject(m)
		}
		if st := extractStacktrace(err); st != "" {
			ev = ev.Str(StacktraceAttrKey, st)
		}
	}
	appendFields(ev, rest).Msg(msg)
}

func (z *zerologLogger) With(fields ...any) Logger {
	ctx := z.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			ctx = ctx.Object(key, v)
		case error:
			ctx = ctx.AnErr(key, v)
		default:
			ctx = ctx.Interface(key, v)
		}
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.zl.GetLevel()
}

func appendFields(ev *zerolog.Event, fields []any) *zerolog.Event {
	if ev == nil {
		return nil
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case float64:
			ev = ev.Float64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}
