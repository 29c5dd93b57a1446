// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package tapestry derives an OpenAPI document and a request handling
// pipeline from one declarative description of an HTTP API.
//
// Controllers and handlers are described with a [metadata.Store], merged
// into a document by [openapi.Assemble] and served by [rest.NewApi].
package tapestry

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Logger returns a [slog.Logger] which emits records through the global
// OpenTelemetry logger provider.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}
