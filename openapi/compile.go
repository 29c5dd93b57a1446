// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/z5labs/tapestry/metadata"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

// Internal extensions recorded on every operation.
const (
	ExtController = InternalPrefix + "controller"
	ExtHandler    = InternalPrefix + "handler"
	ExtBindings   = InternalPrefix + "bindings"
)

// compile merges the controller fragment cf and the handler fragment hf of
// one handler into an [Operation].
func compile(c Controller, name string, cf, hf metadata.Fragment) (*Operation, error) {
	t := c.Target()

	method := scalar(cf.Method, hf.Method)
	if method == nil || *method == "" {
		return nil, MissingMethodError{Target: t, Handler: name}
	}

	op := &Operation{
		Path:       JoinPath(deref(cf.Path), deref(hf.Path)),
		Method:     strings.ToUpper(*method),
		Target:     t,
		Handler:    name,
		Security:   resolveSecurity(cf.Security, hf.Security),
		Middleware: slices.Concat(cf.Middleware, hf.Middleware),
	}

	arity := len(hf.Bindings)
	if hs, ok := c.(HandlerSet); ok {
		h, ok := hs.Handler(name)
		if !ok || h == nil {
			return nil, MissingHandlerError{Target: t, Handler: name}
		}
		op.Invoke = h
		arity = h.Arity()
	}

	bindings, err := bindingTable(t, name, hf.Bindings, arity)
	if err != nil {
		return nil, err
	}
	op.Bindings = bindings

	params, err := parameters(t, name, op.Path, cf, hf, bindings)
	if err != nil {
		return nil, err
	}

	responses, err := metadata.Merge(
		metadata.Fragment{Responses: cf.Responses},
		metadata.Fragment{Responses: hf.Responses},
	)
	if err != nil {
		return nil, err
	}

	spec := &openapi3.Operation{
		Tags:        dedupe(slices.Concat(cf.Tags, hf.Tags)),
		Summary:     scalar(cf.Summary, hf.Summary),
		Description: scalar(cf.Description, hf.Description),
		ID:          scalar(cf.OperationID, hf.OperationID),
		Deprecated:  scalar(cf.Deprecated, hf.Deprecated),
		Parameters:  params,
		Responses: openapi3.Responses{
			MapOfResponseOrRefValues: make(map[string]openapi3.ResponseOrRef, len(responses.Responses)),
		},
		Security: op.Security,
	}
	if spec.ID == nil {
		spec.ID = ptr.Ref(string(t) + "." + name)
	}
	for status, resp := range responses.Responses {
		spec.Responses.MapOfResponseOrRefValues[status] = openapi3.ResponseOrRef{Response: &resp}
	}
	if rb := requestBody(cf, hf, bindings); rb != nil {
		spec.RequestBody = &openapi3.RequestBodyOrRef{RequestBody: rb}
	}

	overlay, err := metadata.MergeTrees(cf.Overlay, hf.Overlay)
	if err != nil {
		return nil, err
	}
	spec, err = applyOverlay(spec, overlay)
	if err != nil {
		return nil, err
	}

	if spec.MapOfAnything == nil {
		spec.MapOfAnything = make(map[string]any)
	}
	spec.MapOfAnything[ExtController] = string(t)
	spec.MapOfAnything[ExtHandler] = name
	spec.MapOfAnything[ExtBindings] = describeBindings(bindings)

	op.Spec = spec
	return op, nil
}

func bindingTable(t metadata.Target, name string, bound map[int]metadata.Binding, arity int) ([]metadata.Binding, error) {
	for i := range bound {
		if i < 0 || i >= arity {
			return nil, UnexpectedBindingError{Target: t, Handler: name, Index: i, Arity: arity}
		}
	}

	table := make([]metadata.Binding, arity)
	for i := range table {
		b, ok := bound[i]
		if !ok {
			return nil, UnboundArgumentError{Target: t, Handler: name, Index: i}
		}
		table[i] = b
	}
	return table, nil
}

type paramKey struct {
	name string
	in   openapi3.ParameterIn
}

// parameters merges declared parameters with the ones implied by bindings
// and path placeholders. A later declaration of the same name and location
// replaces an earlier one in place.
func parameters(t metadata.Target, name, path string, cf, hf metadata.Fragment, bindings []metadata.Binding) ([]openapi3.ParameterOrRef, error) {
	var order []paramKey
	byKey := make(map[paramKey]openapi3.Parameter)
	add := func(p openapi3.Parameter, replace bool) {
		k := paramKey{name: p.Name, in: p.In}
		if _, exists := byKey[k]; exists {
			if replace {
				byKey[k] = p
			}
			return
		}
		order = append(order, k)
		byKey[k] = p
	}

	for _, p := range slices.Concat(cf.Parameters, hf.Parameters) {
		add(p, true)
	}

	for _, b := range bindings {
		switch b.Kind {
		case metadata.FromNamed:
			declared := slices.ContainsFunc(order, func(k paramKey) bool { return k.name == b.Name })
			if !declared {
				return nil, UndeclaredParameterError{Target: t, Handler: name, Parameter: b.Name}
			}
			continue
		}

		in, ok := b.Kind.In()
		if !ok {
			continue
		}
		add(openapi3.Parameter{
			Name:     b.Name,
			In:       in,
			Required: ptr.Ref(b.Required || in == openapi3.ParameterInPath),
			Schema:   b.Schema,
		}, false)
	}

	for _, p := range PathParams(path) {
		add(openapi3.Parameter{
			Name:     p,
			In:       openapi3.ParameterInPath,
			Required: ptr.Ref(true),
			Schema:   String(),
		}, false)
	}

	params := make([]openapi3.ParameterOrRef, 0, len(order))
	for _, k := range order {
		p := byKey[k]
		if p.In == openapi3.ParameterInPath {
			p.Required = ptr.Ref(true)
		}
		params = append(params, openapi3.ParameterOrRef{Parameter: &p})
	}
	return params, nil
}

func requestBody(cf, hf metadata.Fragment, bindings []metadata.Binding) *openapi3.RequestBody {
	if rb := scalar(cf.RequestBody, hf.RequestBody); rb != nil {
		return rb
	}

	for _, b := range bindings {
		if b.Kind != metadata.FromBody {
			continue
		}
		mt := b.MediaType
		if mt == "" {
			mt = "application/json"
		}
		return &openapi3.RequestBody{
			Required: ptr.Ref(b.Required),
			Content: map[string]openapi3.MediaType{
				mt: {Schema: b.Schema},
			},
		}
	}
	return nil
}

// resolveSecurity keeps the controller alternatives which mention none of
// the schemes the handler declares, followed by the handler alternatives.
func resolveSecurity(controller, handler []map[string][]string) []map[string][]string {
	overridden := make(map[string]bool)
	for _, alt := range handler {
		for scheme := range alt {
			overridden[scheme] = true
		}
	}

	var out []map[string][]string
	for _, alt := range controller {
		keep := true
		for scheme := range alt {
			if overridden[scheme] {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, alt)
		}
	}
	return append(out, handler...)
}

func applyOverlay(op *openapi3.Operation, overlay map[string]any) (*openapi3.Operation, error) {
	if len(overlay) == 0 {
		return op, nil
	}

	raw, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}

	var tree map[string]any
	err = json.Unmarshal(raw, &tree)
	if err != nil {
		return nil, err
	}

	merged, err := metadata.MergeTrees(tree, overlay)
	if err != nil {
		return nil, err
	}

	raw, err = json.Marshal(merged)
	if err != nil {
		return nil, err
	}

	var out openapi3.Operation
	err = json.Unmarshal(raw, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func describeBindings(bindings []metadata.Binding) []any {
	out := make([]any, len(bindings))
	for i, b := range bindings {
		d := map[string]any{
			"index": i,
			"kind":  b.Kind.String(),
		}
		if b.Name != "" {
			d["name"] = b.Name
		}
		if b.Required {
			d["required"] = true
		}
		out[i] = d
	}
	return out
}

func scalar[T any](controller, handler *T) *T {
	if handler != nil {
		return handler
	}
	return controller
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dedupe(tags []string) []string {
	var out []string
	for _, tag := range tags {
		if !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}
