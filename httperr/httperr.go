// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httperr defines the HTTP-level error convention shared by the
// binder, the authenticators and the response dispatcher.
//
// An [Error] carries the status code which should be sent to the client and
// whether or not its message is safe to expose. Any other error reaching the
// error handler is treated as an internal, non-exposable failure.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a recognized HTTP-level error.
type Error struct {
	Status  int
	Message string

	// Expose reports whether Message may be included in the response body.
	Expose bool

	Cause error
}

// Error implements the [error] interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Cause == nil {
		return fmt.Sprintf("http error %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("http error %d: %s: %v", e.Status, msg, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New initializes an [Error]. Client errors (4xx) are exposable by default,
// everything else is not.
func New(status int, message string) *Error {
	return &Error{
		Status:  status,
		Message: message,
		Expose:  status >= 400 && status < 500,
	}
}

// Wrap initializes an [Error] with the given cause. The message of the
// cause is used as the error message.
func Wrap(status int, cause error) *Error {
	e := New(status, "")
	e.Cause = cause
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// BadRequest wraps cause as a 400 Bad Request.
func BadRequest(cause error) *Error {
	return Wrap(http.StatusBadRequest, cause)
}

// Unauthorized wraps cause as a 401 Unauthorized.
func Unauthorized(cause error) *Error {
	return Wrap(http.StatusUnauthorized, cause)
}

// Internal wraps cause as a 500 Internal Server Error. Internal errors are
// never exposable regardless of their origin.
func Internal(cause error) *Error {
	e := Wrap(http.StatusInternalServerError, cause)
	e.Expose = false
	return e
}

// As returns the first [Error] found in err's tree.
func As(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// StatusOf returns the status code err should be reported with.
func StatusOf(err error) int {
	he, ok := As(err)
	if !ok || he.Status == 0 {
		return http.StatusInternalServerError
	}
	return he.Status
}
