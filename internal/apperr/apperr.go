// Package apperr defines the error kinds shared by the clipshare services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a status code.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindUnauthorized     Kind = "unauthorized"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation_error"
	KindInvalidOperation Kind = "invalid_operation"
	KindInternal         Kind = "internal"
)

// Error is a classified service failure carrying a dotted code such as
// "engagement.toggle_like.video_not_found".
type Error struct {
	kind    Kind
	code    string
	message string
	err     error
}

// New builds an Error for operation/reason. The message is shown to API callers.
func New(kind Kind, operation, reason, message string, cause error) *Error {
	return &Error{
		kind:    kind,
		code:    fmt.Sprintf("%s.%s", operation, reason),
		message: message,
		err:     cause,
	}
}

// Internal wraps an unexpected persistence or dependency failure.
func Internal(operation, reason string, cause error) *Error {
	return New(KindInternal, operation, reason, "internal error", cause)
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind reports the failure class.
func (e *Error) Kind() Kind {
	return e.kind
}

// Code reports the dotted operation.reason code.
func (e *Error) Code() string {
	return e.code
}

// Message reports the caller-facing description.
func (e *Error) Message() string {
	return e.message
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
