// Package errs holds the coded errors returned by the music packages.
//
// Callers match on the code with errors.Is:
//
//	if errors.Is(err, errs.ErrNoChannel) {
//	    // ask the user to join a voice channel
//	}
package errs

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeInvalidParameter     Code = "INVALID_PARAMETER"
	CodeNoChannel            Code = "NO_CHANNEL"
	CodePlaybackStartTimeout Code = "PLAYBACK_START_TIMEOUT"
	CodeStream               Code = "STREAM_ERROR"
	CodeConnection           Code = "CONNECTION_ERROR"
	CodeNotFound             Code = "NOT_FOUND"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code when target is one of the
// per-code sentinels below. Other *Error values only match themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !isSentinel(t) {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, cause: err}
}

var (
	ErrInvalidInput         = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrInvalidParameter     = &Error{Code: CodeInvalidParameter, Message: "invalid parameter"}
	ErrNoChannel            = &Error{Code: CodeNoChannel, Message: "no voice channel to join"}
	ErrPlaybackStartTimeout = &Error{Code: CodePlaybackStartTimeout, Message: "playback did not start in time"}
	ErrStream               = &Error{Code: CodeStream, Message: "stream failed"}
	ErrConnection           = &Error{Code: CodeConnection, Message: "voice connection failed"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
)

func isSentinel(t *Error) bool {
	switch t {
	case ErrInvalidInput, ErrInvalidParameter, ErrNoChannel, ErrPlaybackStartTimeout,
		ErrStream, ErrConnection, ErrNotFound:
		return true
	}
	return false
}

func InvalidInputf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func InvalidParameterf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParameter, Message: fmt.Sprintf(format, args...)}
}

// Stream wraps a decoder or encoder failure.
func Stream(stage string, err error) *Error {
	return &Error{Code: CodeStream, Message: stage + " stage failed", cause: err}
}

// Connection wraps a voice transport failure.
func Connection(op string, err error) *Error {
	return &Error{Code: CodeConnection, Message: op + " failed", cause: err}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
