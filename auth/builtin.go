// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/z5labs/tapestry/httperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

// Func adapts a function to the Authenticate method of an [Authenticator].
type Func func(ctx context.Context, credential string, scopes []string, r *http.Request) (any, error)

type funcAuthenticator struct {
	name   string
	scheme openapi3.SecurityScheme
	f      Func
}

func (a funcAuthenticator) Name() string                    { return a.name }
func (a funcAuthenticator) Scheme() openapi3.SecurityScheme { return a.scheme }

func (a funcAuthenticator) Authenticate(ctx context.Context, credential string, scopes []string, r *http.Request) (any, error) {
	return a.f(ctx, credential, scopes, r)
}

// New returns an [Authenticator] registered under name.
func New(name string, scheme openapi3.SecurityScheme, f Func) Authenticator {
	return funcAuthenticator{name: name, scheme: scheme, f: f}
}

// APIKeyScheme describes an API key sent in a header, query parameter or
// cookie.
func APIKeyScheme(name, in string) openapi3.SecurityScheme {
	return openapi3.SecurityScheme{
		APIKeySecurityScheme: &openapi3.APIKeySecurityScheme{
			Name: name,
			In:   openapi3.APIKeySecuritySchemeIn(in),
		},
	}
}

// BearerScheme describes a bearer token sent in the Authorization header.
func BearerScheme(format string) openapi3.SecurityScheme {
	s := &openapi3.HTTPSecurityScheme{Scheme: "bearer"}
	if format != "" {
		s.BearerFormat = ptr.Ref(format)
	}
	return openapi3.SecurityScheme{HTTPSecurityScheme: s}
}

// BasicScheme describes HTTP basic authentication.
func BasicScheme() openapi3.SecurityScheme {
	return openapi3.SecurityScheme{
		HTTPSecurityScheme: &openapi3.HTTPSecurityScheme{Scheme: "basic"},
	}
}

// APIKey returns an [Authenticator] accepting any of keys. The principal is
// the principal mapped to the matching key.
func APIKey(name, param, in string, keys map[string]any) Authenticator {
	return New(name, APIKeyScheme(param, in), func(ctx context.Context, credential string, scopes []string, r *http.Request) (any, error) {
		for key, principal := range keys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(credential)) == 1 {
				return principal, nil
			}
		}
		return nil, nil
	})
}

// Claims are the claims of a token accepted by [JWT].
type Claims struct {
	jwt.RegisteredClaims

	Scope string `json:"scope,omitempty"`
}

// Scopes returns the space separated scope claim as a list.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// InsufficientScopeError is returned when a token lacks a required scope.
type InsufficientScopeError struct {
	Missing []string
}

func (e InsufficientScopeError) Error() string {
	return fmt.Sprintf("token is missing required scopes: %s", strings.Join(e.Missing, " "))
}

// JWTOption configures a [JWT] authenticator.
type JWTOption func(*jwtOptions)

type jwtOptions struct {
	parser []jwt.ParserOption
}

// Issuer requires the token to be issued by iss.
func Issuer(iss string) JWTOption {
	return func(o *jwtOptions) {
		o.parser = append(o.parser, jwt.WithIssuer(iss))
	}
}

// Audience requires the token to be issued for aud.
func Audience(aud string) JWTOption {
	return func(o *jwtOptions) {
		o.parser = append(o.parser, jwt.WithAudience(aud))
	}
}

// JWT returns an [Authenticator] for HS256 signed bearer tokens. The
// principal is the token's [*Claims]. Required scopes are checked against
// the scope claim and missing scopes are rejected with 403 Forbidden.
func JWT(name string, key []byte, opts ...JWTOption) Authenticator {
	jo := &jwtOptions{
		parser: []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		},
	}
	for _, opt := range opts {
		opt(jo)
	}

	parser := jwt.NewParser(jo.parser...)
	keyFunc := func(*jwt.Token) (any, error) {
		return key, nil
	}

	return New(name, BearerScheme("JWT"), func(ctx context.Context, credential string, scopes []string, r *http.Request) (any, error) {
		var claims Claims
		_, err := parser.ParseWithClaims(credential, &claims, keyFunc)
		if err != nil {
			return nil, httperr.Unauthorized(err)
		}

		granted := claims.Scopes()
		var missing []string
		for _, s := range scopes {
			if !slices.Contains(granted, s) {
				missing = append(missing, s)
			}
		}
		if len(missing) > 0 {
			return nil, httperr.Wrap(http.StatusForbidden, InsufficientScopeError{Missing: missing})
		}
		return &claims, nil
	})
}
