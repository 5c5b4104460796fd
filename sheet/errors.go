package sheet

import (
	"errors"
	"fmt"
)

// ErrorKind names one class of failure in the error taxonomy.
type ErrorKind string

const (
	// KindValidation marks malformed, missing or mistyped parameters.
	KindValidation ErrorKind = "ValidationError"
	// KindNotFound marks a header or lookup value that is absent.
	KindNotFound ErrorKind = "NotFoundError"
	// KindRange marks a row or column index past the current bounds of a
	// clear/delete operation.
	KindRange ErrorKind = "RangeError"
	// KindTypeMismatch marks a value whose type is not accepted where it was given.
	KindTypeMismatch ErrorKind = "TypeMismatch"
)

// Error is a classified failure. Every failure the store, the lookup
// resolver and the dispatcher report is an *Error.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Errorf creates an *Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it as the cause.
func Wrap(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
