// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"net/http"

	"github.com/swaggest/openapi-go/openapi3"
)

// RouteInfo is the static, per-route context available to middleware
// factories at compile time and to middleware at request time.
type RouteInfo struct {
	Path      string
	Method    string
	Target    string
	Handler   string
	Operation *openapi3.Operation
}

// OperationName identifies the route in error messages.
func (ri RouteInfo) OperationName() string {
	if ri.Operation != nil && ri.Operation.ID != nil && *ri.Operation.ID != "" {
		return *ri.Operation.ID
	}
	return ri.Method + " " + ri.Path
}

// RequestContext is the state of one in-flight request. It is owned by the
// pipeline execution for that request and must not be retained after the
// request completes.
type RequestContext struct {
	Route   RouteInfo
	Request *http.Request

	// Principal is the value returned by the authenticator which accepted
	// the request, if the route is protected.
	Principal any

	// Args are the most recently bound positional arguments.
	Args Args

	recorder *ResponseRecorder
	status   int
}

// NewRequestContext initializes a [RequestContext] whose responses are
// written through rec.
func NewRequestContext(route RouteInfo, r *http.Request, rec *ResponseRecorder) *RequestContext {
	return &RequestContext{
		Route:    route,
		Request:  r,
		recorder: rec,
	}
}

// Response returns the response writer for this request.
func (rc *RequestContext) Response() http.ResponseWriter {
	return rc.recorder
}

// Recorder returns the underlying [ResponseRecorder].
func (rc *RequestContext) Recorder() *ResponseRecorder {
	return rc.recorder
}

// Written reports whether a response status has been written.
func (rc *RequestContext) Written() bool {
	return rc.recorder.Written()
}

// SetStatus sets the status code used when a plain value is serialized.
// It has no effect once a response has been written.
func (rc *RequestContext) SetStatus(code int) {
	rc.status = code
}

// Status returns the pending status code or zero if none was set.
func (rc *RequestContext) Status() int {
	return rc.status
}

type requestContextKey struct{}

// WithRequestContext returns a copy of ctx carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the [RequestContext] carried by ctx, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}
