// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/z5labs/tapestry"
	"github.com/z5labs/tapestry/auth"
	"github.com/z5labs/tapestry/binding"
	"github.com/z5labs/tapestry/httperr"
	"github.com/z5labs/tapestry/openapi"
	"github.com/z5labs/tapestry/pipeline"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type route struct {
	op       *openapi.Operation
	info     pipeline.RouteInfo
	chain    *pipeline.Chain
	binder   *binding.Binder
	registry *auth.Registry
	buffered bool

	errHandler ErrorHandler
	tracer     trace.Tracer
	log        *slog.Logger
}

// newRoute compiles the chain of op. From outermost to innermost it is:
// response validation (if enabled), the postcondition check, plain value
// dispatch, result dispatch, then the controller and handler middleware
// around the handler itself.
func newRoute(op *openapi.Operation, o *Options) (http.Handler, error) {
	var builtin []pipeline.Entry
	if o.validateResponses {
		builtin = append(builtin, pipeline.FactoryEntry(pipeline.ValidateResponses(o.validator)))
	}
	builtin = append(
		builtin,
		pipeline.FactoryEntry(pipeline.Postcondition),
		pipeline.DirectEntry(pipeline.DispatchJSON),
		pipeline.DirectEntry(pipeline.DispatchResult),
	)

	info := op.Route()
	chain, err := pipeline.Compile(info, slices.Concat(builtin, op.Middleware), pipeline.Terminal(op.Invoke))
	if err != nil {
		return nil, err
	}

	rt := &route{
		op:         op,
		info:       info,
		chain:      chain,
		binder:     binding.NewBinder(o.validator),
		registry:   o.registry,
		buffered:   o.validateResponses,
		errHandler: o.errHandler,
		tracer:     otel.Tracer("github.com/z5labs/tapestry/rest"),
		log:        tapestry.Logger("github.com/z5labs/tapestry/rest"),
	}
	return otelhttp.WithRouteTag(op.Path, rt), nil
}

// ServeHTTP implements the [http.Handler] interface.
func (rt *route) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := rt.tracer.Start(
		r.Context(),
		rt.info.OperationName(),
		trace.WithAttributes(
			attribute.String("tapestry.controller", rt.info.Target),
			attribute.String("tapestry.handler", rt.info.Handler),
		),
	)
	defer span.End()

	rec := pipeline.NewResponseRecorder(w, rt.buffered)
	rc := pipeline.NewRequestContext(rt.info, nil, rec)
	ctx = pipeline.WithRequestContext(ctx, rc)
	rc.Request = r.WithContext(ctx)

	err := rt.serve(ctx, rc)
	if err == nil {
		err = rec.Commit()
		if err != nil {
			rt.log.WarnContext(ctx, "failed to write response", slog.Any("error", err))
		}
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")

	if !rec.Discard() {
		rt.log.ErrorContext(
			ctx,
			"request failed after the response was sent",
			slog.String("operation", rt.info.OperationName()),
			slog.Any("error", err),
		)
		return
	}
	rt.errHandler.OnError(ctx, w, err)
}

// serve binds the arguments, authenticates the caller and runs the chain.
// A failure in any step ends the request before the next one starts.
func (rt *route) serve(ctx context.Context, rc *pipeline.RequestContext) (err error) {
	defer internalPanic(&err)
	defer try.Recover(&err)

	args, err := rt.binder.Bind(ctx, rc, rt.op.Bindings)
	if err != nil {
		return err
	}

	principal, err := rt.registry.Authenticate(ctx, rt.op.Security, rc.Request)
	if err != nil {
		return err
	}
	rc.Principal = principal

	_, err = rt.chain.Run(ctx, rc, args)
	return err
}

// internalPanic replaces a [try.PanicError] holding a non-error value with
// an internal [httperr.Error]. The PanicError can only be unwrapped when
// its value is an error.
func internalPanic(err *error) {
	pe, ok := (*err).(try.PanicError)
	if !ok {
		return
	}
	if _, ok := pe.Value.(error); ok {
		return
	}
	*err = httperr.Internal(fmt.Errorf("recovered from panic: %v", pe.Value))
}
