// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// SchemaOf reflects the schema of T with every reference inlined.
func SchemaOf[T any]() (*openapi3.SchemaOrRef, error) {
	var t T
	var reflector jsonschema.Reflector

	jsonSchema, err := reflector.Reflect(t, jsonschema.InlineRefs)
	if err != nil {
		return nil, err
	}

	var schemaOrRef openapi3.SchemaOrRef
	schemaOrRef.FromJSONSchema(jsonSchema.ToSchemaOrBool())
	return &schemaOrRef, nil
}

// MustSchemaOf is like [SchemaOf] but panics on error.
func MustSchemaOf[T any]() *openapi3.SchemaOrRef {
	s, err := SchemaOf[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// Primitive returns an inline schema of the given type.
func Primitive(typ openapi3.SchemaType) *openapi3.SchemaOrRef {
	return &openapi3.SchemaOrRef{
		Schema: &openapi3.Schema{Type: &typ},
	}
}

// String, Integer, Number and Boolean are shorthands for [Primitive].
func String() *openapi3.SchemaOrRef  { return Primitive(openapi3.SchemaTypeString) }
func Integer() *openapi3.SchemaOrRef { return Primitive(openapi3.SchemaTypeInteger) }
func Number() *openapi3.SchemaOrRef  { return Primitive(openapi3.SchemaTypeNumber) }
func Boolean() *openapi3.SchemaOrRef { return Primitive(openapi3.SchemaTypeBoolean) }
