package history

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes manager errors.
type ErrorCode string

const (
	// CodeConfiguration indicates the target could not be resolved or the
	// configuration is inconsistent.
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// CodeAlreadyAttached indicates an attach (or clear) while attached.
	CodeAlreadyAttached ErrorCode = "ALREADY_ATTACHED"

	// CodeNotAttached indicates an operation that needs a target was
	// called before attach or after detach.
	CodeNotAttached ErrorCode = "NOT_ATTACHED"

	// CodeNoOp indicates undo or redo with nothing to move to.
	CodeNoOp ErrorCode = "NO_OP"
)

// Error is returned by Manager operations. Match categories with the
// sentinel values:
//
//	if errors.Is(err, history.ErrNoOp) { ... }
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed ("attach", "undo", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinel errors for errors.Is. They match any *Error with the same Code.
var (
	ErrConfiguration   = &Error{Code: CodeConfiguration}
	ErrAlreadyAttached = &Error{Code: CodeAlreadyAttached}
	ErrNotAttached     = &Error{Code: CodeNotAttached}
	ErrNoOp            = &Error{Code: CodeNoOp}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == "" && t.Err == nil
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func configError(cause error, format string, args ...any) *Error {
	e := newError(CodeConfiguration, "attach", format, args...)
	e.Err = cause
	return e
}
