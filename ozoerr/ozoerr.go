// Package ozoerr provides the error types and error codes reported by the
// client library. Server-reported errors pass through untouched; everything
// the library itself raises carries one of the codes below.
package ozoerr

import (
	"context"
	"errors"
	"fmt"
)

// Code identifies a library-level failure condition.
type Code string

// Error codes for library-level conditions. Server errors are not mapped to
// codes; they are surfaced verbatim via the connection.
const (
	// CodeConnectionStatusBad means the native client reported a bad
	// connection status immediately after connect.
	CodeConnectionStatusBad Code = "connection_status_bad"
	// CodeConnectPollFailed means the connect-polling state machine
	// terminated in failure.
	CodeConnectPollFailed Code = "connect_poll_failed"
	// CodeGetCancelFailed means a cancel token could not be obtained.
	CodeGetCancelFailed Code = "get_cancel_failed"
	// CodeCancelFailed means the synchronous cancel call itself failed.
	CodeCancelFailed Code = "cancel_failed"
	// CodeTimeout means the operation's time constraint expired.
	CodeTimeout Code = "timeout"
	// CodeOperationAborted means a waiting suspension was cancelled.
	CodeOperationAborted Code = "operation_aborted"
	// CodePoolQueueOverflow means an acquire was refused because the
	// pool's waiter queue is at capacity.
	CodePoolQueueOverflow Code = "pool_queue_overflow"
	// CodePoolClosed means an acquire was attempted after pool teardown.
	CodePoolClosed Code = "pool_closed"
	// CodeOidRequestFailed means the type-oid lookup issued right after
	// connect failed.
	CodeOidRequestFailed Code = "oid_request_failed"
	// CodeSendQueryFailed means the query could not be written to the
	// server.
	CodeSendQueryFailed Code = "send_query_failed"
	// CodeBadResultProcess means result rows could not be processed or
	// converted.
	CodeBadResultProcess Code = "bad_result_process"
)

// Error is the structured error type used across the library.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var s string
	if e.Op != "" {
		s = fmt.Sprintf("%s: [%s] %s", e.Op, e.Code, e.Message)
	} else {
		s = fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap implements the unwrap interface for error chaining.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error with a code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithOp returns a copy of the error annotated with an operation name.
func (e *Error) WithOp(op string) *Error {
	dup := *e
	dup.Op = op
	return &dup
}

// CodeOf extracts the library error code from an error chain. It returns
// the empty code for nil, server-reported and unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FromContext maps a context error to the corresponding library code:
// deadline expiry to CodeTimeout, cancellation to CodeOperationAborted.
func FromContext(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeout, "time constraint expired")
	}
	return Wrap(err, CodeOperationAborted, "operation aborted")
}

// IsTimeout reports whether the error carries CodeTimeout.
func IsTimeout(err error) bool {
	return CodeOf(err) == CodeTimeout
}

// IsAborted reports whether the error carries CodeOperationAborted.
func IsAborted(err error) bool {
	return CodeOf(err) == CodeOperationAborted
}

// IsPoolClosed reports whether the error carries CodePoolClosed.
func IsPoolClosed(err error) bool {
	return CodeOf(err) == CodePoolClosed
}

// IsQueueOverflow reports whether the error carries CodePoolQueueOverflow.
func IsQueueOverflow(err error) bool {
	return CodeOf(err) == CodePoolQueueOverflow
}
