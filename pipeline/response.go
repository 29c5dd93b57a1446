// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

type written struct{}

func (written) String() string {
	return "<written>"
}

// Written is returned by handlers which wrote the response themselves.
var Written any = written{}

// Result is a buffered response. Nothing is applied to the transport until
// the dispatcher consumes it, so a failure before that point leaves the
// response untouched.
type Result struct {
	Status  int
	Header  http.Header
	Cookies []*http.Cookie

	// Body is serialized as JSON unless it is a []byte, string or
	// [io.Reader], which are written as is.
	Body any
}

// NewResult initializes a [Result].
func NewResult(status int, body any) *Result {
	return &Result{
		Status: status,
		Header: make(http.Header),
		Body:   body,
	}
}

// WithHeader adds a header value.
func (r *Result) WithHeader(key, value string) *Result {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Add(key, value)
	return r
}

// WithCookie adds a cookie.
func (r *Result) WithCookie(c *http.Cookie) *Result {
	r.Cookies = append(r.Cookies, c)
	return r
}

func (r *Result) apply(w http.ResponseWriter) error {
	var body []byte
	var src io.Reader
	contentType := ""
	switch b := r.Body.(type) {
	case nil:
	case []byte:
		body = b
		contentType = "application/octet-stream"
	case string:
		body = []byte(b)
		contentType = "text/plain; charset=utf-8"
	case io.Reader:
		src = b
		contentType = "application/octet-stream"
	default:
		var err error
		body, err = json.Marshal(b)
		if err != nil {
			return err
		}
		contentType = "application/json"
	}

	h := w.Header()
	for k, vs := range r.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
	for _, c := range r.Cookies {
		http.SetCookie(w, c)
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if src != nil {
		_, err := io.Copy(w, src)
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// DispatchResult applies a [Result] returned by the rest of the chain and
// consumes the [Written] sentinel. Any other value is passed through.
var DispatchResult Middleware = MiddlewareFunc(dispatchResult)

func dispatchResult(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	v, err := next.Call(ctx)
	if err != nil || v == nil {
		return v, err
	}
	if _, ok := v.(written); ok {
		return nil, nil
	}
	if rc.Written() {
		return v, nil
	}

	switch r := v.(type) {
	case *Result:
		return nil, r.apply(rc.Response())
	case Result:
		return nil, r.apply(rc.Response())
	default:
		return v, nil
	}
}

// DispatchJSON serializes a plain value as JSON when nothing has been
// written yet. The status set with [RequestContext.SetStatus] and any
// Content-Type already applied take precedence over the defaults.
var DispatchJSON Middleware = MiddlewareFunc(dispatchJSON)

func dispatchJSON(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	v, err := next.Call(ctx)
	if err != nil || v == nil || rc.Written() {
		return v, err
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	w := rc.Response()
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := rc.Status()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	_, err = w.Write(b)
	return nil, err
}

// NoResponseError is returned when a route completes without writing a
// response.
type NoResponseError struct {
	Operation    string
	ContentTypes []string
	Value        any
}

func (e NoResponseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "operation %s completed without writing a response", e.Operation)
	if e.Value != nil {
		fmt.Fprintf(&sb, " and left a %T value unconsumed", e.Value)
	}
	if len(e.ContentTypes) > 0 {
		fmt.Fprintf(&sb, "; expected one of: %s", strings.Join(e.ContentTypes, ", "))
	}
	return sb.String()
}

// ValueAfterWriteError is returned when a route both wrote a response and
// produced a value.
type ValueAfterWriteError struct {
	Operation string
	Value     any
}

func (e ValueAfterWriteError) Error() string {
	return fmt.Sprintf("operation %s wrote a response and also returned a %T value", e.Operation, e.Value)
}

// Postcondition is a [Factory] whose middleware asserts the chain either
// wrote a response or produced no value. The declared content types of the
// route are resolved when the chain is compiled.
var Postcondition Factory = FactoryFunc(postcondition)

func postcondition(ri RouteInfo) (Middleware, error) {
	name := ri.OperationName()
	contentTypes := declaredContentTypes(ri)

	m := MiddlewareFunc(func(ctx context.Context, rc *RequestContext, next Next) (any, error) {
		v, err := next.Call(ctx)
		if err != nil {
			return nil, err
		}

		switch {
		case !rc.Written():
			return nil, NoResponseError{
				Operation:    name,
				ContentTypes: contentTypes,
				Value:        v,
			}
		case v != nil:
			return nil, ValueAfterWriteError{
				Operation: name,
				Value:     v,
			}
		}
		return nil, nil
	})
	return m, nil
}

func declaredContentTypes(ri RouteInfo) []string {
	if ri.Operation == nil {
		return nil
	}

	var cts []string
	for _, resp := range ri.Operation.Responses.MapOfResponseOrRefValues {
		if resp.Response == nil {
			continue
		}
		for ct := range resp.Response.Content {
			if !slices.Contains(cts, ct) {
				cts = append(cts, ct)
			}
		}
	}
	slices.Sort(cts)
	return cts
}
