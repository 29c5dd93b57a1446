// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metadata

import (
	"fmt"

	"github.com/swaggest/openapi-go/openapi3"
)

// Kind identifies where the value of a handler argument comes from.
type Kind int

const (
	FromPath Kind = iota + 1
	FromQuery
	FromHeader
	FromCookie

	// FromNamed binds a parameter declared on the operation by name. Its
	// location is taken from the parameter declaration.
	FromNamed

	FromBody
	RawRequest
	RawResponse
)

func (k Kind) String() string {
	switch k {
	case FromPath:
		return "path"
	case FromQuery:
		return "query"
	case FromHeader:
		return "header"
	case FromCookie:
		return "cookie"
	case FromNamed:
		return "named"
	case FromBody:
		return "body"
	case RawRequest:
		return "request"
	case RawResponse:
		return "response"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// In returns the parameter location of k, if it has one.
func (k Kind) In() (openapi3.ParameterIn, bool) {
	switch k {
	case FromPath:
		return openapi3.ParameterInPath, true
	case FromQuery:
		return openapi3.ParameterInQuery, true
	case FromHeader:
		return openapi3.ParameterInHeader, true
	case FromCookie:
		return openapi3.ParameterInCookie, true
	default:
		return "", false
	}
}

// Binding describes how one positional handler argument is extracted from
// a request.
type Binding struct {
	Kind Kind

	// Name of the parameter. Unused for body and raw bindings.
	Name string

	Schema   *openapi3.SchemaOrRef
	Required bool

	// MediaType of a body binding. Defaults to application/json.
	MediaType string
}

func (b Binding) String() string {
	if b.Name == "" {
		return b.Kind.String()
	}
	return fmt.Sprintf("%s %q", b.Kind, b.Name)
}
