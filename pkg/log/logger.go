package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SetupLogger installs a Cloud Logging style JSON slog handler on os.Stdout
// as the slog default and returns it.
func SetupLogger(loglevel string) *slog.Logger {
	return SetupLoggerTo(os.Stdout, loglevel)
}

// SetupLoggerTo is SetupLogger with an explicit destination.
func SetupLoggerTo(w io.Writer, loglevel string) *slog.Logger {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{
					Key:   "severity",
					Value: attr.Value,
				}
			case slog.MessageKey:
				attr = slog.Attr{
					Key:   "message",
					Value: attr.Value,
				}
			case slog.SourceKey:
				attr = slog.Attr{
					Key:   "logging.googleapis.com/sourceLocation",
					Value: attr.Value,
				}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(w, &ops)
	l := slog.New(WrapByErrFmtHandler(handler))
	slog.SetDefault(l)
	return l
}

func ToLogLevel(level string) slog.Level {
	switch level {
	case "info", "":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// splitErr pulls a leading error out of a field list.
func splitErr(fields []any) (error, []any) {
	if len(fields) == 0 {
		return nil, fields
	}
	if err, ok := fields[0].(error); ok {
		return err, fields[1:]
	}
	return nil, fields
}
