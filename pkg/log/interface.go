// Package log provides the structured logging interface used across lcgen.
//
// The interface is slog-compatible so that backends can be swapped without
// touching training code. Two backends ship with the package: a zerolog
// logger (the CLI default, console or JSON output) and a log/slog logger
// that emits Cloud Logging style JSON with cockroachdb/errors stack traces.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.RunIDKey, runID,
//	    log.ModelNameKey, "time-context-mlp",
//	)
//	logger.Info("Epoch finished",
//	    log.EpochKey, 3,
//	    log.LossKey, 0.012,
//	    log.MaskedLossKey, 0.031,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key-value pairs. With returns a child
// logger that carries the given fields on every subsequent record.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	// Contained anomalies (skipped batches, exhausted mask placement,
	// failed plots) are reported at this level.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error it is attached under ErrAttrKey
	// together with its stack trace where the backend supports it.
	//
	// Example:
	//   logger.Error("Checkpoint write failed",
	//       err,
	//       log.CheckpointPathKey, path,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a textual level ("debug", "info", "warn", "error")
// into a Level. Unknown names yield ok == false.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
