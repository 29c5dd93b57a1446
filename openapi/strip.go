// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import "strings"

// InternalPrefix marks document fields which are only meaningful for
// compiling routes.
const InternalPrefix = "x-tapestry-"

// Strip returns a copy of tree without any object keys starting with
// [InternalPrefix]. Objects, arrays and scalars are otherwise copied as
// they are, at any depth. tree is not modified.
func Strip(tree any) any {
	switch v := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			if strings.HasPrefix(k, InternalPrefix) {
				continue
			}
			out[k] = Strip(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = Strip(e)
		}
		return out
	default:
		return v
	}
}
