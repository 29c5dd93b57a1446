// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/swaggest/openapi-go/openapi3"
)

// MissingCredentialError is returned when the request carries no credential
// where the scheme expects one.
type MissingCredentialError struct {
	Name string
	In   string
}

func (e MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential in %s: %s", e.In, e.Name)
}

// MalformedCredentialError is returned when the credential is present but
// not in the format the scheme expects.
type MalformedCredentialError struct {
	Name   string
	In     string
	Reason string
}

func (e MalformedCredentialError) Error() string {
	return fmt.Sprintf("malformed credential in %s %s: %s", e.In, e.Name, e.Reason)
}

// UnsupportedSchemeError is returned for security schemes whose credential
// location cannot be determined.
type UnsupportedSchemeError struct {
	Reason string
}

func (e UnsupportedSchemeError) Error() string {
	return "unsupported security scheme: " + e.Reason
}

const (
	bearerPrefix = "Bearer "
	basicPrefix  = "Basic "
)

// Extract returns the raw credential the scheme designates. Bearer tokens
// are returned without their prefix and basic credentials are returned
// decoded as "user:password".
func Extract(scheme openapi3.SecurityScheme, r *http.Request) (string, error) {
	switch {
	case scheme.APIKeySecurityScheme != nil:
		return extractAPIKey(scheme.APIKeySecurityScheme, r)
	case scheme.HTTPSecurityScheme != nil:
		return extractHTTP(scheme.HTTPSecurityScheme, r)
	case scheme.OAuth2SecurityScheme != nil, scheme.OpenIDConnectSecurityScheme != nil:
		return extractBearer(r)
	default:
		return "", UnsupportedSchemeError{Reason: "no scheme type declared"}
	}
}

func extractAPIKey(s *openapi3.APIKeySecurityScheme, r *http.Request) (string, error) {
	in := string(s.In)

	var v string
	switch in {
	case "header":
		v = r.Header.Get(s.Name)
	case "query":
		v = r.URL.Query().Get(s.Name)
	case "cookie":
		c, err := r.Cookie(s.Name)
		if err == nil {
			v = c.Value
		}
	default:
		return "", UnsupportedSchemeError{Reason: "api key in " + in}
	}

	if v == "" {
		return "", MissingCredentialError{Name: s.Name, In: in}
	}
	return v, nil
}

func extractHTTP(s *openapi3.HTTPSecurityScheme, r *http.Request) (string, error) {
	switch strings.ToLower(s.Scheme) {
	case "bearer":
		return extractBearer(r)
	case "basic":
		return extractBasic(r)
	default:
		return "", UnsupportedSchemeError{Reason: "http scheme " + s.Scheme}
	}
}

func extractBearer(r *http.Request) (string, error) {
	v := r.Header.Get("Authorization")
	if v == "" {
		return "", MissingCredentialError{Name: "Authorization", In: "header"}
	}

	// The prefix is case-sensitive (RFC 6750 Section 2.1).
	token, ok := strings.CutPrefix(v, bearerPrefix)
	if !ok {
		return "", MalformedCredentialError{Name: "Authorization", In: "header", Reason: "expected Bearer scheme"}
	}
	if token == "" {
		return "", MalformedCredentialError{Name: "Authorization", In: "header", Reason: "empty token"}
	}
	return token, nil
}

func extractBasic(r *http.Request) (string, error) {
	v := r.Header.Get("Authorization")
	if v == "" {
		return "", MissingCredentialError{Name: "Authorization", In: "header"}
	}

	enc, ok := strings.CutPrefix(v, basicPrefix)
	if !ok {
		return "", MalformedCredentialError{Name: "Authorization", In: "header", Reason: "expected Basic scheme"}
	}

	dec, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || !strings.Contains(string(dec), ":") {
		return "", MalformedCredentialError{Name: "Authorization", In: "header", Reason: "invalid basic credentials"}
	}
	return string(dec), nil
}

// BasicCredentials splits a credential returned by [Extract] for a basic
// scheme.
func BasicCredentials(credential string) (user, password string, ok bool) {
	return strings.Cut(credential, ":")
}
