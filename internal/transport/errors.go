package transport

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrorKind represents the category of a delivery failure.
type ErrorKind int

const (
	// ErrorKindInvalidURL means the target URL could not be decomposed.
	// No connection is attempted.
	ErrorKindInvalidURL ErrorKind = iota

	// ErrorKindConnection means the connection could not be established.
	ErrorKindConnection

	// ErrorKindIO means writing the request or reading the response failed.
	ErrorKindIO

	// ErrorKindTimedOut means the peer did not respond within the read bound.
	ErrorKindTimedOut

	// ErrorKindInvalidPayload means the payload could not be encoded as JSON.
	// No connection is attempted.
	ErrorKindInvalidPayload
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInvalidURL:
		return "INVALID_URL"
	case ErrorKindConnection:
		return "CONNECTION_ERROR"
	case ErrorKindIO:
		return "IO_ERROR"
	case ErrorKindTimedOut:
		return "TIMED_OUT"
	case ErrorKindInvalidPayload:
		return "INVALID_PAYLOAD"
	default:
		return "UNKNOWN"
	}
}

// Label returns the metric label for this error kind.
func (k ErrorKind) Label() string {
	switch k {
	case ErrorKindInvalidURL:
		return "invalid_url"
	case ErrorKindConnection:
		return "connection"
	case ErrorKindIO:
		return "io"
	case ErrorKindTimedOut:
		return "timed_out"
	case ErrorKindInvalidPayload:
		return "invalid_payload"
	default:
		return "unknown"
	}
}

// Error is a delivery failure. It is always reported as a Result value,
// never returned across the delivery boundary as a panic.
type Error struct {
	Kind ErrorKind

	// Errno is the OS error number for connection failures, 0 if unknown.
	Errno int

	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("%s: %s (%d)", e.Kind, e.Message, e.Errno)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && ErrorKind(k) == e.Kind
}

type kindSentinel ErrorKind

func (k kindSentinel) Error() string { return ErrorKind(k).String() }

// Sentinels for errors.Is checks against delivery failures.
var (
	ErrInvalidURL     error = kindSentinel(ErrorKindInvalidURL)
	ErrConnection     error = kindSentinel(ErrorKindConnection)
	ErrIO             error = kindSentinel(ErrorKindIO)
	ErrTimedOut       error = kindSentinel(ErrorKindTimedOut)
	ErrInvalidPayload error = kindSentinel(ErrorKindInvalidPayload)
)

// KindOf extracts the ErrorKind from err.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	e := &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
	var errno syscall.Errno
	if err != nil && errors.As(err, &errno) {
		e.Errno = int(errno)
	}
	return e
}
