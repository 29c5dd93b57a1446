// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package validate provides the schema validation capability consumed by the
// parameter binder and the response dispatcher.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/z5labs/tapestry/concurrent"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/swaggest/openapi-go/openapi3"
)

// Validator checks a value against an OpenAPI schema. A nil error means the
// value is valid.
type Validator interface {
	Validate(schema *openapi3.SchemaOrRef, value any) error
}

// Func is an adapter to allow ordinary functions to be used as a [Validator].
type Func func(*openapi3.SchemaOrRef, any) error

// Validate implements the [Validator] interface.
func (f Func) Validate(schema *openapi3.SchemaOrRef, value any) error {
	return f(schema, value)
}

// Noop accepts every value.
var Noop Validator = Func(func(*openapi3.SchemaOrRef, any) error { return nil })

// Error describes why a value did not satisfy its schema.
type Error struct {
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// SchemaCompileError is returned when a declared schema cannot be compiled.
// This is always a programming error in the declared metadata.
type SchemaCompileError struct {
	Cause error
}

func (e SchemaCompileError) Error() string {
	return fmt.Sprintf("failed to compile schema: %v", e.Cause)
}

func (e SchemaCompileError) Unwrap() error {
	return e.Cause
}

// JSONSchema is a [Validator] backed by a JSON Schema engine. OpenAPI 3.0
// schemas are evaluated with draft 4 semantics, which is the draft they
// extend. References of the form #/components/schemas/{name} resolve
// against the schemas given with [Components].
//
// Compiled schemas are cached by their serialized form so the cost of
// compilation is paid once per distinct schema.
type JSONSchema struct {
	components map[string]openapi3.SchemaOrRef
	compiled   *concurrent.Cache[string, *jsonschema.Schema]
}

// JSONSchemaOption sets a value on a [JSONSchema].
type JSONSchemaOption func(*JSONSchema)

// Components sets the schemas component references resolve against.
func Components(schemas map[string]openapi3.SchemaOrRef) JSONSchemaOption {
	return func(v *JSONSchema) {
		v.components = schemas
	}
}

// NewJSONSchema initializes a [JSONSchema] validator.
func NewJSONSchema(opts ...JSONSchemaOption) *JSONSchema {
	v := &JSONSchema{
		compiled: concurrent.NewCache[string, *jsonschema.Schema](),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate implements the [Validator] interface.
func (v *JSONSchema) Validate(schema *openapi3.SchemaOrRef, value any) error {
	if schema == nil || (schema.Schema == nil && schema.SchemaReference == nil) {
		return nil
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return SchemaCompileError{Cause: err}
	}

	sch, err := v.compiled.GetOr(string(raw), func() (*jsonschema.Schema, error) {
		return v.compile(raw)
	})
	if err != nil {
		return SchemaCompileError{Cause: err}
	}

	inst, err := instance(value)
	if err != nil {
		return &Error{Detail: "value is not valid JSON", Cause: err}
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	return &Error{
		Detail: describe(err),
		Cause:  err,
	}
}

// compile places the schema next to the components in one document so
// component references resolve within it.
func (v *JSONSchema) compile(raw []byte) (*jsonschema.Schema, error) {
	doc := map[string]any{
		"schema": json.RawMessage(raw),
	}
	if len(v.components) > 0 {
		doc["components"] = map[string]any{
			"schemas": v.components,
		}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	tree, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft4)

	err = c.AddResource("schema.json", tree)
	if err != nil {
		return nil, err
	}
	return c.Compile("schema.json#/schema")
}

// instance normalizes value into the representation the engine expects,
// which is what decoding JSON produces.
func instance(value any) (any, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return jsonschema.UnmarshalJSON(bytes.NewReader(v))
	case []byte:
		return jsonschema.UnmarshalJSON(bytes.NewReader(v))
	}

	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// describe flattens the engine's multi-line report into one line.
func describe(err error) string {
	lines := strings.Split(err.Error(), "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}

	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if line == "" {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "; ")
}
