// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/swaggest/openapi-go/openapi3"
)

func schemaOf(t *testing.T, s string) *openapi3.SchemaOrRef {
	t.Helper()

	var sor openapi3.SchemaOrRef
	err := json.Unmarshal([]byte(s), &sor)
	require.NoError(t, err)
	return &sor
}

func TestJSONSchema_Validate(t *testing.T) {
	t.Run("will accept a value", func(t *testing.T) {
		t.Run("if it matches a primitive schema", func(t *testing.T) {
			v := NewJSONSchema()

			err := v.Validate(schemaOf(t, `{"type":"integer"}`), int64(5))
			require.NoError(t, err)
		})

		t.Run("if the schema is nil", func(t *testing.T) {
			v := NewJSONSchema()

			err := v.Validate(nil, "anything")
			require.NoError(t, err)
		})

		t.Run("if it is raw json matching an object schema", func(t *testing.T) {
			v := NewJSONSchema()

			s := schemaOf(t, `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
			err := v.Validate(s, json.RawMessage(`{"name":"fido"}`))
			require.NoError(t, err)
		})
	})

	t.Run("will return an Error", func(t *testing.T) {
		t.Run("if the value has the wrong type", func(t *testing.T) {
			v := NewJSONSchema()

			err := v.Validate(schemaOf(t, `{"type":"integer"}`), "abc")

			var verr *Error
			require.True(t, errors.As(err, &verr))
			require.NotEmpty(t, verr.Detail)
		})

		t.Run("if a required property is missing", func(t *testing.T) {
			v := NewJSONSchema()

			s := schemaOf(t, `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
			err := v.Validate(s, map[string]any{"age": 3})

			var verr *Error
			require.True(t, errors.As(err, &verr))
			require.Contains(t, verr.Detail, "name")
		})
	})

	t.Run("will resolve component references", func(t *testing.T) {
		v := NewJSONSchema(Components(map[string]openapi3.SchemaOrRef{
			"Pet": *schemaOf(t, `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`),
		}))
		ref := &openapi3.SchemaOrRef{
			SchemaReference: &openapi3.SchemaReference{Ref: "#/components/schemas/Pet"},
		}

		t.Run("if the value matches the component", func(t *testing.T) {
			require.NoError(t, v.Validate(ref, map[string]any{"name": "rex"}))
		})

		t.Run("if the value does not match the component", func(t *testing.T) {
			err := v.Validate(ref, map[string]any{"age": 3})

			var verr *Error
			require.True(t, errors.As(err, &verr))
			require.Contains(t, verr.Detail, "name")
		})

		t.Run("if the reference is nested in an array schema", func(t *testing.T) {
			s := &openapi3.SchemaOrRef{
				Schema: (&openapi3.Schema{Items: ref}).WithType(openapi3.SchemaTypeArray),
			}

			require.NoError(t, v.Validate(s, []map[string]any{{"name": "rex"}}))
			require.Error(t, v.Validate(s, []map[string]any{{"age": 3}}))
		})
	})

	t.Run("will return a SchemaCompileError", func(t *testing.T) {
		t.Run("if a reference names an unknown component", func(t *testing.T) {
			v := NewJSONSchema()

			missing := &openapi3.SchemaOrRef{
				SchemaReference: &openapi3.SchemaReference{Ref: "#/components/schemas/Missing"},
			}
			err := v.Validate(missing, map[string]any{})

			var cerr SchemaCompileError
			require.ErrorAs(t, err, &cerr)
		})
	})

	t.Run("will compile a schema only once", func(t *testing.T) {
		v := NewJSONSchema()

		s := schemaOf(t, `{"type":"boolean"}`)
		require.NoError(t, v.Validate(s, true))
		require.NoError(t, v.Validate(s, false))
		require.Equal(t, 1, v.compiled.Len())
	})
}
