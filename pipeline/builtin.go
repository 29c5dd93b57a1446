// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestIDHeader carries the request id.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFrom returns the request id assigned by [RequestID].
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// RequestID propagates the caller supplied request id or assigns a new one.
// The id is echoed in the response and available to the rest of the chain
// through [RequestIDFrom].
var RequestID Middleware = MiddlewareFunc(func(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	id := rc.Request.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	rc.Response().Header().Set(RequestIDHeader, id)

	return next.Call(context.WithValue(ctx, requestIDKey{}, id))
})

// Instrument is a [Factory] recording the number and duration of
// invocations for each route. The route attributes are computed once when
// the chain is compiled.
var Instrument Factory = FactoryFunc(func(ri RouteInfo) (Middleware, error) {
	meter := otel.Meter("github.com/z5labs/tapestry/pipeline")

	calls, err := meter.Int64Counter(
		"tapestry.operation.calls",
		metric.WithDescription("Number of operation invocations."),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"tapestry.operation.duration",
		metric.WithDescription("Duration of operation invocations."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	attrs := attribute.NewSet(
		attribute.String("http.route", ri.Path),
		attribute.String("http.request.method", ri.Method),
		attribute.String("tapestry.operation", ri.OperationName()),
	)
	ok := metric.WithAttributeSet(attribute.NewSet(append(attrs.ToSlice(), attribute.Bool("error", false))...))
	failed := metric.WithAttributeSet(attribute.NewSet(append(attrs.ToSlice(), attribute.Bool("error", true))...))

	m := MiddlewareFunc(func(ctx context.Context, rc *RequestContext, next Next) (any, error) {
		start := time.Now()
		v, err := next.Call(ctx)

		opt := ok
		if err != nil {
			opt = failed
		}
		calls.Add(ctx, 1, opt)
		duration.Record(ctx, time.Since(start).Seconds(), opt)
		return v, err
	})
	return m, nil
})
