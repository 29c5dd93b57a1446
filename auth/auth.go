// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package auth resolves declared security requirements to runtime
// authentication strategies.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/z5labs/tapestry/pipeline"

	"github.com/swaggest/openapi-go/openapi3"
)

// Authenticator converts a raw credential into a principal.
//
// A nil principal (or false) rejects the request with 401 Unauthorized. An
// [*httperr.Error] rejects it with the status chosen by the authenticator.
// Any other error is an internal failure.
type Authenticator interface {
	// Name is the security scheme name the authenticator is registered under.
	Name() string

	// Scheme describes where the credential is found.
	Scheme() openapi3.SecurityScheme

	Authenticate(ctx context.Context, credential string, scopes []string, r *http.Request) (any, error)
}

// EmptyNameError is returned when registering an authenticator without a name.
type EmptyNameError struct{}

func (EmptyNameError) Error() string {
	return "authenticator name must not be empty"
}

// ConflictingSchemeError is returned when two authenticators share a name
// but describe different security schemes.
type ConflictingSchemeError struct {
	Name string
}

func (e ConflictingSchemeError) Error() string {
	return fmt.Sprintf("authenticators named %s declare different security schemes", e.Name)
}

// Registry is the set of known authenticators.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	byName map[string]Authenticator
	shapes map[string]string
}

// NewRegistry initializes a [Registry] with the given authenticators.
func NewRegistry(auths ...Authenticator) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Authenticator),
		shapes: make(map[string]string),
	}
	for _, a := range auths {
		err := r.Register(a)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a. Registering a second authenticator with the same name
// and the same scheme keeps the first one.
func (r *Registry) Register(a Authenticator) error {
	name := a.Name()
	if name == "" {
		return EmptyNameError{}
	}

	shape, err := json.Marshal(a.Scheme())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.shapes[name]
	if exists {
		if prev != string(shape) {
			return ConflictingSchemeError{Name: name}
		}
		return nil
	}

	r.names = append(r.names, name)
	r.byName[name] = a
	r.shapes[name] = string(shape)
	return nil
}

// Lookup returns the authenticator registered under name.
func (r *Registry) Lookup(name string) (Authenticator, bool) {
	if r == nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byName[name]
	return a, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.names)
}

// Schemes returns the security scheme of every registered authenticator
// keyed by name.
func (r *Registry) Schemes() map[string]openapi3.SecurityScheme {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make(map[string]openapi3.SecurityScheme, len(r.byName))
	for name, a := range r.byName {
		schemes[name] = a.Scheme()
	}
	return schemes
}

// PrincipalFrom returns the principal which authenticated the request
// carried by ctx.
func PrincipalFrom(ctx context.Context) (any, bool) {
	rc, ok := pipeline.FromContext(ctx)
	if !ok || rc.Principal == nil {
		return nil, false
	}
	return rc.Principal, true
}
