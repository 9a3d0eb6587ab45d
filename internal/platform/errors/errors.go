// Package errors is the project error type: a message, a machine readable
// code and an optional wrapped cause. Import it as perr
package errors

import (
	"context"
	stderrs "errors"
	"fmt"
)

// ErrorCode classifies failures across the pipeline. Values are persisted in
// the run ledger as names, so only append
type ErrorCode uint16

const (
	ErrorCodeUnknown         ErrorCode = iota // unclassified
	ErrorCodePanic                            // recovered inside a worker
	ErrorCodeUnavailable                      // transient upstream or db failure, retry may help
	ErrorCodeTooManyRequests                  // upstream rate limiting
	ErrorCodeInvalidArgument                  // bad options or caller input
	ErrorCodeValidation                       // a record or row breaks the output contract
	ErrorCodeJSON                             // undecodable upstream payload
	ErrorCodeNotFound                         // missing upstream resource or bucket
	ErrorCodeDB                               // ledger failure
	ErrorCodeIO                               // filesystem or object store failure
	ErrorCodeCanceled                         // abandoned because the run was interrupted
)

var codeNames = [...]string{
	"unknown", "panic", "unavailable", "too_many_requests", "invalid_argument",
	"validation", "json", "not_found", "db", "io", "canceled",
}

// String returns the stable lowercase name of the code
func (c ErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// Error carries a developer facing msg, a machine facing code and an
// optional field naming the offending input
type Error struct {
	code  ErrorCode
	msg   string
	field string
	cause error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.cause != nil:
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error { return e.cause }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// New returns an *Error with code and msg
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf is New with a formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return New(code, fmt.Sprintf(format, a...))
}

// Wrap returns an *Error around cause
func Wrap(cause error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, cause: cause}
}

// Wrapf is Wrap with a formatted message
func Wrapf(cause error, code ErrorCode, format string, a ...any) error {
	return Wrap(cause, code, fmt.Sprintf(format, a...))
}

// InvalidArgf returns an ErrorCodeInvalidArgument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Unavailablef returns an ErrorCodeUnavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// PanicErrf returns an ErrorCodePanic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// IOf returns an ErrorCodeIO error
func IOf(format string, a ...any) error { return Newf(ErrorCodeIO, format, a...) }

// Canceled wraps the cause of ctx so CodeOf reports ErrorCodeCanceled
func Canceled(ctx context.Context, msg string) error {
	return Wrap(context.Cause(ctx), ErrorCodeCanceled, msg)
}

// WithField returns a copy of err naming field. Errors that are not ours pass through
func WithField(err error, field string) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	c := *e
	c.field = field
	return &c
}

// As finds the outermost *Error in the chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrs.As(err, &e)
	return e, ok
}

// CodeOf returns the code of the outermost *Error. A bare context.Canceled
// maps to ErrorCodeCanceled, anything else to ErrorCodeUnknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	if stderrs.Is(err, context.Canceled) {
		return ErrorCodeCanceled
	}
	return ErrorCodeUnknown
}

// IsCode reports whether CodeOf(err) is code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// Root returns the innermost cause
func Root(err error) error {
	for {
		next := stderrs.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// Retryable reports whether another attempt could succeed. Unavailable and
// rate limited codes retry, cancellation never does, and Postgres errors
// defer to IsRetryable
func Retryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeUnavailable, ErrorCodeTooManyRequests:
		return true
	case ErrorCodeCanceled:
		return false
	}
	return IsRetryable(err)
}
