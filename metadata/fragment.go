// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metadata

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/z5labs/tapestry/pipeline"

	"dario.cat/mergo"
	"github.com/swaggest/openapi-go/openapi3"
)

// Fragment is a partial description of a controller or handler. Fragments
// are values; merging never mutates its inputs.
//
// Every field belongs to exactly one merge kind:
//
//   - scalars (pointer fields) are replaced by the later fragment when it
//     sets them, so merging scalars is not commutative
//   - lists are concatenated in registration order
//   - keyed maps are merged key by key, deep merging values on collision
//   - bindings are write-once per argument position
type Fragment struct {
	// scalars
	Path        *string
	Method      *string
	Summary     *string
	Description *string
	OperationID *string
	Deprecated  *bool
	RequestBody *openapi3.RequestBody

	// lists
	Tags       []string
	Parameters []openapi3.Parameter
	Security   []map[string][]string
	Middleware []pipeline.Entry

	// keyed
	Responses map[string]openapi3.Response
	Overlay   map[string]any

	// write-once
	Bindings map[int]Binding
}

// RebindError is returned when an argument position is bound twice.
type RebindError struct {
	Target  Target
	Handler string
	Index   int
}

func (e RebindError) Error() string {
	if e.Handler == "" {
		return fmt.Sprintf("argument %d of controller %s is already bound", e.Index, e.Target)
	}
	return fmt.Sprintf("argument %d of handler %s.%s is already bound", e.Index, e.Target, e.Handler)
}

// MergeError is returned when keyed values cannot be deep merged.
type MergeError struct {
	Field string
	Key   string
	Cause error
}

func (e MergeError) Error() string {
	return fmt.Sprintf("failed to merge %s[%s]: %v", e.Field, e.Key, e.Cause)
}

func (e MergeError) Unwrap() error {
	return e.Cause
}

// Merge combines a and b, with b registered after a.
func Merge(a, b Fragment) (Fragment, error) {
	out := a.Clone()

	mergeScalar(&out.Path, b.Path)
	mergeScalar(&out.Method, b.Method)
	mergeScalar(&out.Summary, b.Summary)
	mergeScalar(&out.Description, b.Description)
	mergeScalar(&out.OperationID, b.OperationID)
	mergeScalar(&out.Deprecated, b.Deprecated)
	mergeScalar(&out.RequestBody, b.RequestBody)

	out.Tags = concat(out.Tags, b.Tags)
	out.Parameters = concat(out.Parameters, b.Parameters)
	out.Security = concat(out.Security, b.Security)
	out.Middleware = concat(out.Middleware, b.Middleware)

	responses, err := mergeResponses(out.Responses, b.Responses)
	if err != nil {
		return Fragment{}, err
	}
	out.Responses = responses

	overlay, err := mergeTree(out.Overlay, b.Overlay)
	if err != nil {
		return Fragment{}, MergeError{Field: "overlay", Cause: err}
	}
	out.Overlay = overlay

	for i, binding := range b.Bindings {
		if _, exists := out.Bindings[i]; exists {
			return Fragment{}, RebindError{Index: i}
		}
		if out.Bindings == nil {
			out.Bindings = make(map[int]Binding, len(b.Bindings))
		}
		out.Bindings[i] = binding
	}
	return out, nil
}

// Clone returns a copy of f which shares no lists or maps with f.
func (f Fragment) Clone() Fragment {
	out := f
	out.Tags = slices.Clone(f.Tags)
	out.Parameters = slices.Clone(f.Parameters)
	out.Security = make([]map[string][]string, 0, len(f.Security))
	for _, req := range f.Security {
		out.Security = append(out.Security, cloneRequirement(req))
	}
	if len(f.Security) == 0 {
		out.Security = nil
	}
	out.Middleware = slices.Clone(f.Middleware)
	out.Responses = maps.Clone(f.Responses)
	out.Overlay = cloneTree(f.Overlay)
	out.Bindings = maps.Clone(f.Bindings)
	return out
}

func cloneRequirement(req map[string][]string) map[string][]string {
	out := make(map[string][]string, len(req))
	for k, scopes := range req {
		out[k] = slices.Clone(scopes)
	}
	return out
}

func mergeScalar[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func concat[T any](a, b []T) []T {
	if len(b) == 0 {
		return a
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func mergeResponses(a, b map[string]openapi3.Response) (map[string]openapi3.Response, error) {
	if len(b) == 0 {
		return a, nil
	}

	out := maps.Clone(a)
	if out == nil {
		out = make(map[string]openapi3.Response, len(b))
	}
	for status, resp := range b {
		prev, exists := out[status]
		if !exists {
			out[status] = resp
			continue
		}

		merged, err := deepMerge(prev, resp)
		if err != nil {
			return nil, MergeError{Field: "responses", Key: status, Cause: err}
		}
		out[status] = merged
	}
	return out, nil
}

// deepMerge merges the JSON trees of a and b and decodes the result.
func deepMerge[T any](a, b T) (T, error) {
	var zero T

	at, err := toTree(a)
	if err != nil {
		return zero, err
	}
	bt, err := toTree(b)
	if err != nil {
		return zero, err
	}
	pruneEmpty(bt)

	merged, err := mergeTree(at, bt)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return zero, err
	}

	var out T
	err = json.Unmarshal(raw, &out)
	return out, err
}

func toTree(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var tree map[string]any
	err = json.Unmarshal(raw, &tree)
	return tree, err
}

// pruneEmpty removes empty strings and nulls from tree so that fields the
// later value leaves unset do not override earlier ones.
func pruneEmpty(tree map[string]any) {
	for k, v := range tree {
		switch x := v.(type) {
		case nil:
			delete(tree, k)
		case string:
			if x == "" {
				delete(tree, k)
			}
		case map[string]any:
			pruneEmpty(x)
		}
	}
}

// MergeTrees deep merges the JSON object b over a without modifying either.
func MergeTrees(a, b map[string]any) (map[string]any, error) {
	return mergeTree(a, b)
}

func mergeTree(a, b map[string]any) (map[string]any, error) {
	if len(b) == 0 {
		return cloneTree(a), nil
	}

	out := cloneTree(a)
	if out == nil {
		out = make(map[string]any, len(b))
	}
	err := mergo.Merge(&out, cloneTree(b), mergo.WithOverride)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func cloneTree(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneTree(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
