// Package wasmdebug turns a recovered panic from inside the execution core
// into a readable error, attaching the Wasm call-frame names active at the
// time of the trap.
package wasmdebug

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorBuilder accumulates call-frame names while the interpreter's call
// stack is unwound inside a deferred recover, then renders them into the
// final error.
type ErrorBuilder struct {
	frames []string
}

// NewErrorBuilder returns a new, empty ErrorBuilder.
func NewErrorBuilder() *ErrorBuilder {
	return &ErrorBuilder{}
}

// AddFrame records one call frame, innermost first.
func (b *ErrorBuilder) AddFrame(debugName string) {
	b.frames = append(b.frames, debugName)
}

// FromRecovered turns the value returned by recover() into an error. If v is
// already an error (in particular, a *wasmruntime.Trap), it is wrapped with
// the accumulated backtrace; any other value is rendered as a generic
// runtime error so a non-trap panic (a genuine bug) is never mistaken for a
// well-defined Trap.
func (b *ErrorBuilder) FromRecovered(v interface{}) error {
	var base error
	if err, ok := v.(error); ok {
		base = err
	} else {
		base = fmt.Errorf("unexpected panic: %v", v)
	}
	if len(b.frames) == 0 {
		return base
	}
	return &backtraceError{cause: base, frames: b.frames}
}

type backtraceError struct {
	cause  error
	frames []string
}

func (e *backtraceError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.cause.Error())
	sb.WriteString("\nwasm backtrace:")
	for i, f := range e.frames {
		sb.WriteString(fmt.Sprintf("\n\t%d: %s", i, f))
	}
	return sb.String()
}

func (e *backtraceError) Unwrap() error { return e.cause }

// Is supports errors.Is(err, target) reaching the wrapped cause, needed
// since Trap sentinels are compared by identity.
func (e *backtraceError) Is(target error) bool { return errors.Is(e.cause, target) }
