// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"fmt"

	"github.com/z5labs/tapestry/metadata"
)

// DuplicateOperationError is returned when two handlers resolve to the same
// path and method.
type DuplicateOperationError struct {
	Path   string
	Method string
}

func (e DuplicateOperationError) Error() string {
	return fmt.Sprintf("duplicate operation: %s %s", e.Method, e.Path)
}

// MissingMethodError is returned when a handler does not declare its HTTP
// method.
type MissingMethodError struct {
	Target  metadata.Target
	Handler string
}

func (e MissingMethodError) Error() string {
	return fmt.Sprintf("handler %s.%s does not declare an http method", e.Target, e.Handler)
}

// MissingHandlerError is returned when a controller has metadata for a
// handler it does not implement.
type MissingHandlerError struct {
	Target  metadata.Target
	Handler string
}

func (e MissingHandlerError) Error() string {
	return fmt.Sprintf("controller %s does not implement handler %s", e.Target, e.Handler)
}

// UnboundArgumentError is returned when a handler argument position has no
// binding.
type UnboundArgumentError struct {
	Target  metadata.Target
	Handler string
	Index   int
}

func (e UnboundArgumentError) Error() string {
	return fmt.Sprintf("argument %d of handler %s.%s is not bound", e.Index, e.Target, e.Handler)
}

// UnexpectedBindingError is returned when a binding refers to a position
// beyond the handler's arguments.
type UnexpectedBindingError struct {
	Target  metadata.Target
	Handler string
	Index   int
	Arity   int
}

func (e UnexpectedBindingError) Error() string {
	return fmt.Sprintf("handler %s.%s takes %d arguments but argument %d is bound", e.Target, e.Handler, e.Arity, e.Index)
}

// UndeclaredParameterError is returned when a named binding refers to a
// parameter the operation does not declare.
type UndeclaredParameterError struct {
	Target    metadata.Target
	Handler   string
	Parameter string
}

func (e UndeclaredParameterError) Error() string {
	return fmt.Sprintf("handler %s.%s binds undeclared parameter: %s", e.Target, e.Handler, e.Parameter)
}

// UnknownSchemeError is returned when an operation requires a security
// scheme with no registered authenticator.
type UnknownSchemeError struct {
	Path   string
	Method string
	Scheme string
}

func (e UnknownSchemeError) Error() string {
	return fmt.Sprintf("operation %s %s requires unknown security scheme: %s", e.Method, e.Path, e.Scheme)
}

// OperationError wraps a failure to add an operation to the document.
type OperationError struct {
	Path   string
	Method string
	Cause  error
}

func (e OperationError) Error() string {
	return fmt.Sprintf("failed to add operation %s %s: %v", e.Method, e.Path, e.Cause)
}

func (e OperationError) Unwrap() error {
	return e.Cause
}
