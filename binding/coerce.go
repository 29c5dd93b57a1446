// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package binding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swaggest/openapi-go/openapi3"
)

// schemaType returns the declared type of schema, if it is inline.
func schemaType(schema *openapi3.SchemaOrRef) (openapi3.SchemaType, *openapi3.Schema) {
	if schema == nil || schema.Schema == nil || schema.Schema.Type == nil {
		return "", nil
	}
	return *schema.Schema.Type, schema.Schema
}

// coerce converts the raw string values of a parameter to the type its
// schema declares. Arrays take every value, splitting comma separated
// header values. Every other type takes the first value.
func coerce(schema *openapi3.SchemaOrRef, values []string, header bool) (any, error) {
	typ, s := schemaType(schema)
	if typ != openapi3.SchemaTypeArray {
		return coerceScalar(typ, values[0])
	}

	var items *openapi3.SchemaOrRef
	if s != nil {
		items = s.Items
	}
	itemType, _ := schemaType(items)

	var raw []string
	for _, v := range values {
		if header || len(values) == 1 {
			for _, part := range strings.Split(v, ",") {
				raw = append(raw, strings.TrimSpace(part))
			}
			continue
		}
		raw = append(raw, v)
	}

	out := make([]any, 0, len(raw))
	for _, v := range raw {
		c, err := coerceScalar(itemType, v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func coerceScalar(typ openapi3.SchemaType, v string) (any, error) {
	switch typ {
	case openapi3.SchemaTypeInteger:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer but got %q", v)
		}
		return i, nil
	case openapi3.SchemaTypeNumber:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number but got %q", v)
		}
		return f, nil
	case openapi3.SchemaTypeBoolean:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("expected boolean but got %q", v)
		}
		return b, nil
	default:
		return v, nil
	}
}
