// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metadata

import (
	"strings"

	"github.com/z5labs/tapestry/pipeline"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

// Path sets the path of a handler or the base path of a controller.
func Path(p string) Fragment {
	return Fragment{Path: ptr.Ref(p)}
}

// Method sets the HTTP method of a handler.
func Method(m string) Fragment {
	return Fragment{Method: ptr.Ref(strings.ToUpper(m))}
}

// Route sets both the method and path of a handler.
func Route(method, path string) Fragment {
	return Fragment{
		Method: ptr.Ref(strings.ToUpper(method)),
		Path:   ptr.Ref(path),
	}
}

// Summary sets the operation summary.
func Summary(s string) Fragment {
	return Fragment{Summary: ptr.Ref(s)}
}

// Description sets the operation description.
func Description(s string) Fragment {
	return Fragment{Description: ptr.Ref(s)}
}

// OperationID sets the operation id.
func OperationID(id string) Fragment {
	return Fragment{OperationID: ptr.Ref(id)}
}

// Deprecated marks the operation as deprecated.
func Deprecated() Fragment {
	return Fragment{Deprecated: ptr.Ref(true)}
}

// Tags appends tags.
func Tags(tags ...string) Fragment {
	return Fragment{Tags: tags}
}

// Param appends a parameter declaration.
func Param(p openapi3.Parameter) Fragment {
	return Fragment{Parameters: []openapi3.Parameter{p}}
}

// Body sets the request body.
func Body(rb openapi3.RequestBody) Fragment {
	return Fragment{RequestBody: &rb}
}

// JSONBody sets a required JSON request body with the given schema.
func JSONBody(schema *openapi3.SchemaOrRef) Fragment {
	return Body(openapi3.RequestBody{
		Required: ptr.Ref(true),
		Content: map[string]openapi3.MediaType{
			"application/json": {Schema: schema},
		},
	})
}

// Response declares the response for a status code, or "default".
func Response(status string, resp openapi3.Response) Fragment {
	return Fragment{
		Responses: map[string]openapi3.Response{status: resp},
	}
}

// JSONResponse declares a JSON response for a status code.
func JSONResponse(status, description string, schema *openapi3.SchemaOrRef) Fragment {
	return Response(status, openapi3.Response{
		Description: description,
		Content: map[string]openapi3.MediaType{
			"application/json": {Schema: schema},
		},
	})
}

// RequireAuthentication appends a security requirement alternative
// satisfied by the named scheme with the given scopes.
func RequireAuthentication(scheme string, scopes ...string) Fragment {
	if scopes == nil {
		scopes = []string{}
	}
	return Fragment{
		Security: []map[string][]string{{scheme: scopes}},
	}
}

// RequireAll appends a security requirement alternative which is only
// satisfied when every scheme in req authenticates the request.
func RequireAll(req map[string][]string) Fragment {
	return Fragment{
		Security: []map[string][]string{cloneRequirement(req)},
	}
}

// Use appends middleware invoked on every request.
func Use(mws ...pipeline.Middleware) Fragment {
	entries := make([]pipeline.Entry, len(mws))
	for i, m := range mws {
		entries[i] = pipeline.DirectEntry(m)
	}
	return Fragment{Middleware: entries}
}

// UseFactory appends middleware built once per route.
func UseFactory(fs ...pipeline.Factory) Fragment {
	entries := make([]pipeline.Entry, len(fs))
	for i, f := range fs {
		entries[i] = pipeline.FactoryEntry(f)
	}
	return Fragment{Middleware: entries}
}

// Overlay deep merges free-form fields into the operation document.
func Overlay(fields map[string]any) Fragment {
	return Fragment{Overlay: cloneTree(fields)}
}

// Bind binds argument i.
func Bind(i int, b Binding) Fragment {
	return Fragment{Bindings: map[int]Binding{i: b}}
}

// BindPath binds argument i to a path parameter. Path parameters are
// always required.
func BindPath(i int, name string, schema *openapi3.SchemaOrRef) Fragment {
	return Bind(i, Binding{Kind: FromPath, Name: name, Schema: schema, Required: true})
}

// BindQuery binds argument i to a query parameter.
func BindQuery(i int, name string, schema *openapi3.SchemaOrRef, required bool) Fragment {
	return Bind(i, Binding{Kind: FromQuery, Name: name, Schema: schema, Required: required})
}

// BindHeader binds argument i to a header.
func BindHeader(i int, name string, schema *openapi3.SchemaOrRef, required bool) Fragment {
	return Bind(i, Binding{Kind: FromHeader, Name: name, Schema: schema, Required: required})
}

// BindCookie binds argument i to a cookie.
func BindCookie(i int, name string, schema *openapi3.SchemaOrRef, required bool) Fragment {
	return Bind(i, Binding{Kind: FromCookie, Name: name, Schema: schema, Required: required})
}

// BindNamed binds argument i to the parameter declared with [Param] under
// name.
func BindNamed(i int, name string) Fragment {
	return Bind(i, Binding{Kind: FromNamed, Name: name})
}

// BindBody binds argument i to the request body. The body is also declared
// on the operation unless one was set with [Body].
func BindBody(i int, mediaType string, schema *openapi3.SchemaOrRef, required bool) Fragment {
	return Bind(i, Binding{Kind: FromBody, MediaType: mediaType, Schema: schema, Required: required})
}

// BindRequest binds argument i to the raw [*http.Request].
func BindRequest(i int) Fragment {
	return Bind(i, Binding{Kind: RawRequest})
}

// BindResponse binds argument i to the raw [http.ResponseWriter].
func BindResponse(i int) Fragment {
	return Bind(i, Binding{Kind: RawResponse})
}
