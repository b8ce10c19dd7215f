package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// PanicError is an error built from a recovered panic. Best-effort side outputs
// such as plotting run under Guard so a panic inside a third-party renderer
// cannot take a training run down with it.
type PanicError struct {
	PanicValue interface{}
	StackTrace string
	Operation  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String includes the captured stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError captures the current stack for a recovered panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error assigned to *err. It must be deferred
// directly by the function whose named error result is passed in:
//
//	func render() (err error) {
//	    defer errors.Recover(&err, "render")
//	    ...
//	}
//
// When *err already holds an error, the panic is attached as a secondary
// error so errors.Is still matches the original.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	panicErr := NewPanicError(operation, r)
	if *err != nil {
		*err = errors.WithSecondaryError(*err, panicErr)
		return
	}
	*err = panicErr
}

// Guard runs fn and turns any panic into a *PanicError.
func Guard(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
