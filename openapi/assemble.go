// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package openapi assembles the metadata of registered controllers into one
// OpenAPI document and an index of compiled operations.
package openapi

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/z5labs/tapestry/auth"
	"github.com/z5labs/tapestry/metadata"
	"github.com/z5labs/tapestry/pipeline"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

// Controller is a group of handlers sharing the metadata of its target.
type Controller interface {
	Target() metadata.Target
}

// HandlerSet is implemented by controllers which provide the handlers
// their metadata describes. Controllers which do not implement it can only
// be used for building documents.
type HandlerSet interface {
	Handler(name string) (pipeline.Handler, bool)
}

type specOnly metadata.Target

func (t specOnly) Target() metadata.Target {
	return metadata.Target(t)
}

// SpecOnly returns a [Controller] for building a document without any
// handler implementations.
func SpecOnly(t metadata.Target) Controller {
	return specOnly(t)
}

type handlers struct {
	target metadata.Target
	byName map[string]pipeline.Handler
}

func (h handlers) Target() metadata.Target {
	return h.target
}

func (h handlers) Handler(name string) (pipeline.Handler, bool) {
	f, ok := h.byName[name]
	return f, ok
}

// Handlers returns a [Controller] implementing [HandlerSet] with the given
// handlers.
func Handlers(t metadata.Target, byName map[string]pipeline.Handler) Controller {
	return handlers{target: t, byName: byName}
}

// Info is the top level information of the document.
type Info struct {
	Title       string
	Version     string
	Description string
	Servers     []string

	// Schemas are published under components.schemas.
	Schemas map[string]*openapi3.SchemaOrRef
}

// Operation is one fully merged (path, method) pair.
type Operation struct {
	Path    string
	Method  string
	Target  metadata.Target
	Handler string

	// Spec is the operation as published, including internal extensions.
	Spec *openapi3.Operation

	// Security alternatives; any one of them authenticates a request.
	Security []map[string][]string

	// Middleware of the controller followed by middleware of the handler.
	Middleware []pipeline.Entry

	// Bindings are indexed by handler argument position.
	Bindings []metadata.Binding

	// Invoke is nil for operations of controllers built with [SpecOnly].
	Invoke pipeline.Handler
}

// Route returns the static route context of op.
func (op *Operation) Route() pipeline.RouteInfo {
	return pipeline.RouteInfo{
		Path:      op.Path,
		Method:    op.Method,
		Target:    string(op.Target),
		Handler:   op.Handler,
		Operation: op.Spec,
	}
}

type operationKey struct {
	path   string
	method string
}

// Build is the result of assembling a set of controllers. A Build is
// immutable once returned and independent of any other Build.
type Build struct {
	Spec       *openapi3.Spec
	Operations []*Operation

	// Registry is the registry the build was assembled against. It is nil
	// if none was given.
	Registry *auth.Registry

	index map[operationKey]*Operation
}

// Lookup returns the operation registered for method and path.
func (b *Build) Lookup(method, path string) (*Operation, bool) {
	op, ok := b.index[operationKey{path: NormalizePath(path), method: strings.ToUpper(method)}]
	return op, ok
}

// Schemas returns the schemas published under components.schemas.
func (b *Build) Schemas() map[string]openapi3.SchemaOrRef {
	if b.Spec.Components == nil || b.Spec.Components.Schemas == nil {
		return nil
	}
	return b.Spec.Components.Schemas.MapOfSchemaOrRefValues
}

// Document returns the complete document as a JSON tree.
func (b *Build) Document() (map[string]any, error) {
	raw, err := json.Marshal(b.Spec)
	if err != nil {
		return nil, err
	}

	var tree map[string]any
	err = json.Unmarshal(raw, &tree)
	return tree, err
}

// Public returns the document without internal extensions.
func (b *Build) Public() (map[string]any, error) {
	tree, err := b.Document()
	if err != nil {
		return nil, err
	}
	return Strip(tree).(map[string]any), nil
}

// Assemble merges the metadata of every controller into one document.
// Controllers are processed in order and handlers in the order their
// metadata was first registered. reg may be nil if no operation requires
// authentication.
func Assemble(store *metadata.Store, info Info, reg *auth.Registry, controllers ...Controller) (*Build, error) {
	spec := &openapi3.Spec{
		Openapi: "3.0.3",
		Info: openapi3.Info{
			Title:   info.Title,
			Version: info.Version,
		},
	}
	if info.Description != "" {
		spec.Info.Description = ptr.Ref(info.Description)
	}
	for _, url := range info.Servers {
		spec.Servers = append(spec.Servers, openapi3.Server{URL: url})
	}

	b := &Build{
		Spec:     spec,
		Registry: reg,
		index:    make(map[operationKey]*Operation),
	}
	for _, c := range controllers {
		t := c.Target()
		cf, _ := store.Controller(t)

		for _, name := range store.Handlers(t) {
			hf, _ := store.Handler(t, name)

			op, err := compile(c, name, cf, hf)
			if err != nil {
				return nil, err
			}

			key := operationKey{path: op.Path, method: op.Method}
			if _, exists := b.index[key]; exists {
				return nil, DuplicateOperationError{Path: op.Path, Method: op.Method}
			}

			for _, alt := range op.Security {
				for scheme := range alt {
					if _, ok := reg.Lookup(scheme); !ok {
						return nil, UnknownSchemeError{Path: op.Path, Method: op.Method, Scheme: scheme}
					}
				}
			}

			err = spec.AddOperation(strings.ToLower(op.Method), op.Path, *op.Spec)
			if err != nil {
				return nil, OperationError{Path: op.Path, Method: op.Method, Cause: err}
			}

			b.index[key] = op
			b.Operations = append(b.Operations, op)
		}
	}

	schemes := reg.Schemes()
	for _, name := range reg.Names() {
		scheme := schemes[name]
		spec.ComponentsEns().SecuritySchemesEns().WithMapOfSecuritySchemeOrRefValuesItem(
			name,
			openapi3.SecuritySchemeOrRef{
				SecurityScheme: &scheme,
			},
		)
	}

	names := make([]string, 0, len(info.Schemas))
	for name := range info.Schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		spec.ComponentsEns().SchemasEns().WithMapOfSchemaOrRefValuesItem(name, *info.Schemas[name])
	}

	return b, nil
}
