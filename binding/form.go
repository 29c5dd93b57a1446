// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package binding

import (
	"net/url"

	"github.com/z5labs/tapestry/httperr"

	"github.com/swaggest/openapi-go/openapi3"
)

// parseForm decodes a url encoded body into an object, coercing each field
// to the type its property schema declares.
func parseForm(raw string, schema *openapi3.SchemaOrRef) (any, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, httperr.BadRequest(err)
	}

	var props map[string]openapi3.SchemaOrRef
	if _, s := schemaType(schema); s != nil {
		props = s.Properties
	}

	out := make(map[string]any, len(values))
	for name, vs := range values {
		var prop *openapi3.SchemaOrRef
		if p, ok := props[name]; ok {
			prop = &p
		}

		v, err := coerce(prop, vs, false)
		if err != nil {
			return nil, httperr.BadRequest(InvalidParameterValueError{
				Parameter: name,
				In:        bodyIn,
				Reason:    err.Error(),
				Cause:     err,
			})
		}
		out[name] = v
	}
	return out, nil
}
