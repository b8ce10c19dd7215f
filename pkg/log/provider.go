package log

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	lcerrors "github.com/YuminosukeSato/lcgen/pkg/errors"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = FromZerolog(zerolog.Nop())
)

// GetLogger returns the process-wide default logger. Until SetLogger is
// called it discards everything.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// GetLoggerWithName returns the default logger tagged with ComponentKey.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the default logger and routes errors.Warn through it.
func SetLogger(l Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
	RouteWarnings(l)
}

// RouteWarnings makes errors.Warn emit through l at warn level. A nil l
// restores the errors package fallback handler.
func RouteWarnings(l Logger) {
	if l == nil {
		lcerrors.SetZerologWarnFunc(nil)
		return
	}
	lcerrors.SetZerologWarnFunc(func(w error) {
		fields := []any{ErrorTypeKey, fmt.Sprintf("%T", w)}
		var exhausted *lcerrors.MaskGenerationExhausted
		if lcerrors.As(w, &exhausted) {
			fields = append(fields,
				ErrorCodeKey, ErrorMaskExhausted,
				LengthKey, exhausted.Length,
				BlockSizeKey, exhausted.BlockSize,
			)
		}
		l.Warn(w.Error(), fields...)
	})
}
