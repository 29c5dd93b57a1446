// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/z5labs/tapestry/httperr"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// UnknownSchemeError is returned when a security requirement names a scheme
// without a registered authenticator.
type UnknownSchemeError struct {
	Name string
}

func (e UnknownSchemeError) Error() string {
	return fmt.Sprintf("no authenticator registered for security scheme: %s", e.Name)
}

// RejectedError is returned when an authenticator accepts the credential
// format but resolves no principal.
type RejectedError struct {
	Scheme string
}

func (e RejectedError) Error() string {
	return fmt.Sprintf("rejected by security scheme: %s", e.Scheme)
}

// Principals holds the principal of every scheme in a security requirement
// alternative naming more than one scheme.
type Principals map[string]any

// Authenticate checks r against security. Alternatives are tried in order
// and the first one to succeed wins. Every scheme within an alternative
// must succeed.
//
// The principal of an alternative naming a single scheme is the value its
// authenticator returned. Otherwise it is a [Principals]. When security is
// empty the request is not authenticated and the principal is nil.
//
// If every alternative fails the error of the first one is returned.
func (r *Registry) Authenticate(ctx context.Context, security []map[string][]string, req *http.Request) (any, error) {
	if len(security) == 0 {
		return nil, nil
	}

	spanCtx, span := otel.Tracer("github.com/z5labs/tapestry/auth").Start(ctx, "Registry.Authenticate")
	defer span.End()

	var first error
	for _, alt := range security {
		p, err := r.authenticateAll(spanCtx, alt, req)
		if err == nil {
			return p, nil
		}

		he, ok := httperr.As(err)
		if !ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, "authentication failed")
			return nil, err
		}
		if first == nil {
			first = he
		}
	}

	span.SetStatus(codes.Error, "unauthenticated")
	return nil, first
}

func (r *Registry) authenticateAll(ctx context.Context, alt map[string][]string, req *http.Request) (any, error) {
	names := make([]string, 0, len(alt))
	for name := range alt {
		names = append(names, name)
	}
	slices.Sort(names)

	principals := make(Principals, len(names))
	for _, name := range names {
		p, err := r.authenticateOne(ctx, name, alt[name], req)
		if err != nil {
			return nil, err
		}
		principals[name] = p
	}

	if len(names) == 1 {
		return principals[names[0]], nil
	}
	return principals, nil
}

func (r *Registry) authenticateOne(ctx context.Context, name string, scopes []string, req *http.Request) (any, error) {
	a, ok := r.Lookup(name)
	if !ok {
		return nil, httperr.Internal(UnknownSchemeError{Name: name})
	}

	_, span := otel.Tracer("github.com/z5labs/tapestry/auth").Start(ctx, "Authenticator.Authenticate")
	defer span.End()
	span.SetAttributes(
		attribute.String("auth.scheme", name),
		attribute.String("auth.scopes", strings.Join(scopes, " ")),
	)

	cred, err := Extract(a.Scheme(), req)
	if err != nil {
		if _, unsupported := err.(UnsupportedSchemeError); unsupported {
			return nil, httperr.Internal(err)
		}
		return nil, httperr.Unauthorized(err)
	}

	p, err := a.Authenticate(ctx, cred, scopes, req)
	if err != nil {
		if _, ok := httperr.As(err); ok {
			return nil, err
		}
		span.RecordError(err)
		return nil, err
	}
	if falsy(p) {
		return nil, httperr.Unauthorized(RejectedError{Scheme: name})
	}
	return p, nil
}

func falsy(p any) bool {
	switch v := p.(type) {
	case nil:
		return true
	case bool:
		return !v
	default:
		return false
	}
}
