// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package binding extracts, coerces and validates handler arguments from
// incoming requests.
package binding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/z5labs/tapestry/httperr"
	"github.com/z5labs/tapestry/metadata"
	"github.com/z5labs/tapestry/pipeline"
	"github.com/z5labs/tapestry/validate"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/openapi-go/openapi3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// MissingRequiredParameterError is returned when a required parameter is
// not present in the request.
type MissingRequiredParameterError struct {
	Parameter string
	In        string
}

func (e MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("missing required parameter in %s: %s", e.In, e.Parameter)
}

// InvalidParameterValueError is returned when a parameter's value does not
// match its declared schema.
type InvalidParameterValueError struct {
	Parameter string
	In        string
	Reason    string
	Cause     error
}

func (e InvalidParameterValueError) Error() string {
	return fmt.Sprintf("invalid parameter value in %s: %s: %s", e.In, e.Parameter, e.Reason)
}

func (e InvalidParameterValueError) Unwrap() error {
	return e.Cause
}

// UndeclaredParameterError is returned when a named binding refers to a
// parameter the operation does not declare.
type UndeclaredParameterError struct {
	Parameter string
}

func (e UndeclaredParameterError) Error() string {
	return fmt.Sprintf("operation does not declare parameter: %s", e.Parameter)
}

// Binder resolves the positional arguments of a handler.
type Binder struct {
	validator validate.Validator
}

// NewBinder initializes a [Binder]. A nil validator skips schema validation.
func NewBinder(v validate.Validator) *Binder {
	if v == nil {
		v = validate.Noop
	}
	return &Binder{validator: v}
}

// Bind resolves one argument per binding, in order. A missing optional
// argument is bound to [pipeline.Absent]. The first failure is returned as
// a 400 [httperr.Error] and no further arguments are resolved.
func (b *Binder) Bind(ctx context.Context, rc *pipeline.RequestContext, bindings []metadata.Binding) (pipeline.Args, error) {
	spanCtx, span := otel.Tracer("github.com/z5labs/tapestry/binding").Start(ctx, "Binder.Bind")
	defer span.End()

	var body *bodyCache
	args := make(pipeline.Args, len(bindings))
	for i, binding := range bindings {
		var (
			v   any
			err error
		)
		switch binding.Kind {
		case metadata.RawRequest:
			v = rc.Request.WithContext(spanCtx)
		case metadata.RawResponse:
			v = rc.Response()
		case metadata.FromBody:
			if body == nil {
				body = &bodyCache{}
			}
			v, err = b.bindBody(rc.Request, binding, body)
		case metadata.FromNamed:
			v, err = b.bindNamed(rc, binding)
		default:
			v, err = b.bindParam(rc.Request, binding)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "binding failed")
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (b *Binder) bindNamed(rc *pipeline.RequestContext, binding metadata.Binding) (any, error) {
	p, ok := lookupParameter(rc.Route.Operation, binding.Name)
	if !ok {
		return nil, httperr.Internal(UndeclaredParameterError{Parameter: binding.Name})
	}

	resolved := metadata.Binding{
		Name:     p.Name,
		Schema:   p.Schema,
		Required: p.Required != nil && *p.Required,
	}
	switch p.In {
	case openapi3.ParameterInPath:
		resolved.Kind = metadata.FromPath
		resolved.Required = true
	case openapi3.ParameterInQuery:
		resolved.Kind = metadata.FromQuery
	case openapi3.ParameterInHeader:
		resolved.Kind = metadata.FromHeader
	case openapi3.ParameterInCookie:
		resolved.Kind = metadata.FromCookie
	default:
		return nil, httperr.Internal(UndeclaredParameterError{Parameter: binding.Name})
	}
	return b.bindParam(rc.Request, resolved)
}

func lookupParameter(op *openapi3.Operation, name string) (*openapi3.Parameter, bool) {
	if op == nil {
		return nil, false
	}
	for _, p := range op.Parameters {
		if p.Parameter != nil && p.Parameter.Name == name {
			return p.Parameter, true
		}
	}
	return nil, false
}

func (b *Binder) bindParam(r *http.Request, binding metadata.Binding) (any, error) {
	in, _ := binding.Kind.In()
	values := lookup(r, binding.Kind, binding.Name)
	if len(values) == 0 {
		if binding.Required {
			return nil, httperr.BadRequest(MissingRequiredParameterError{
				Parameter: binding.Name,
				In:        string(in),
			})
		}
		return pipeline.Absent, nil
	}

	v, err := coerce(binding.Schema, values, binding.Kind == metadata.FromHeader)
	if err != nil {
		return nil, httperr.BadRequest(InvalidParameterValueError{
			Parameter: binding.Name,
			In:        string(in),
			Reason:    err.Error(),
			Cause:     err,
		})
	}

	err = b.validator.Validate(binding.Schema, v)
	if err != nil {
		return nil, invalid(binding.Name, string(in), err)
	}
	return v, nil
}

func invalid(name, in string, err error) error {
	if _, compile := err.(validate.SchemaCompileError); compile {
		return httperr.Internal(err)
	}
	return httperr.BadRequest(InvalidParameterValueError{
		Parameter: name,
		In:        in,
		Reason:    err.Error(),
		Cause:     err,
	})
}

func lookup(r *http.Request, kind metadata.Kind, name string) []string {
	switch kind {
	case metadata.FromPath:
		v := chi.URLParam(r, name)
		if v == "" {
			v = r.PathValue(name)
		}
		if v == "" {
			return nil
		}
		return []string{v}
	case metadata.FromQuery:
		return r.URL.Query()[name]
	case metadata.FromHeader:
		return r.Header.Values(name)
	case metadata.FromCookie:
		var vs []string
		for _, c := range r.CookiesNamed(name) {
			vs = append(vs, c.Value)
		}
		return vs
	default:
		return nil
	}
}
