// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package openapi

import (
	"regexp"
	"strings"
)

// NormalizePath returns p in canonical form: a leading slash, no empty or
// trailing segments and every parameter written as "{name}". Both ":name"
// and "{name}" segments are accepted.
func NormalizePath(p string) string {
	segments := strings.Split(p, "/")

	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if name, ok := strings.CutPrefix(seg, ":"); ok && name != "" {
			seg = "{" + name + "}"
		}
		out = append(out, seg)
	}
	return "/" + strings.Join(out, "/")
}

// JoinPath joins a controller base path and a handler path. An empty base
// path is the root.
func JoinPath(base, p string) string {
	return NormalizePath(base + "/" + p)
}

var placeholder = regexp.MustCompile(`\{([^{}/]+)\}`)

// PathParams returns the parameter names of a normalized path in order.
func PathParams(p string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(p, -1) {
		names = append(names, m[1])
	}
	return names
}
