// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"fmt"
)

// Link is one compiled step of a chain.
type Link func(ctx context.Context, rc *RequestContext, args Args) (any, error)

// Next continues the chain from inside a [Middleware].
type Next struct {
	rc   *RequestContext
	args Args
	link Link
}

// Args returns a copy of the arguments the rest of the chain will receive.
func (n Next) Args() Args {
	return n.args.Clone()
}

// Call invokes the rest of the chain with the current arguments and returns
// the value it resolves to.
func (n Next) Call(ctx context.Context) (any, error) {
	return n.link(ctx, n.rc, n.args)
}

// WithArgs invokes the rest of the chain with args replacing the positional
// handler arguments for this invocation only.
func (n Next) WithArgs(ctx context.Context, args Args) (any, error) {
	return n.link(ctx, n.rc, args)
}

// Middleware intercepts a route invocation. It may run code before calling
// next, transform the value next resolves to, replace the arguments, not
// call next at all or fail.
type Middleware interface {
	Intercept(ctx context.Context, rc *RequestContext, next Next) (any, error)
}

// MiddlewareFunc is an adapter to allow ordinary functions to be used as [Middleware].
type MiddlewareFunc func(context.Context, *RequestContext, Next) (any, error)

// Intercept implements the [Middleware] interface.
func (f MiddlewareFunc) Intercept(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	return f(ctx, rc, next)
}

// Factory builds a [Middleware] specialized for one route. Factories are
// invoked once when the chain is compiled, never per request.
type Factory interface {
	Build(RouteInfo) (Middleware, error)
}

// FactoryFunc is an adapter to allow ordinary functions to be used as a [Factory].
type FactoryFunc func(RouteInfo) (Middleware, error)

// Build implements the [Factory] interface.
func (f FactoryFunc) Build(ri RouteInfo) (Middleware, error) {
	return f(ri)
}

// Entry is either a direct [Middleware] or a [Factory].
type Entry struct {
	direct  Middleware
	factory Factory
}

// DirectEntry returns an [Entry] for a middleware invoked per request.
func DirectEntry(m Middleware) Entry {
	return Entry{direct: m}
}

// FactoryEntry returns an [Entry] for a middleware produced per route.
func FactoryEntry(f Factory) Entry {
	return Entry{factory: f}
}

// IsFactory reports whether e holds a [Factory].
func (e Entry) IsFactory() bool {
	return e.factory != nil
}

func (e Entry) resolve(ri RouteInfo) (Middleware, error) {
	if e.factory != nil {
		return e.factory.Build(ri)
	}
	return e.direct, nil
}

// EmptyEntryError is returned when compiling an [Entry] holding neither a
// middleware nor a factory.
type EmptyEntryError struct {
	Route string
	Index int
}

func (e EmptyEntryError) Error() string {
	return fmt.Sprintf("middleware %d of %s is empty", e.Index, e.Route)
}

// FactoryError is returned when a middleware factory fails to build.
type FactoryError struct {
	Route string
	Index int
	Cause error
}

func (e FactoryError) Error() string {
	return fmt.Sprintf("middleware factory %d of %s failed: %v", e.Index, e.Route, e.Cause)
}

func (e FactoryError) Unwrap() error {
	return e.Cause
}

// Chain is a compiled, reusable middleware chain for one route.
type Chain struct {
	route RouteInfo
	link  Link
}

// Compile nests entries around terminal. The first entry is the outermost.
// Factories are resolved here so the returned [Chain] does no per-route work
// at request time.
func Compile(route RouteInfo, entries []Entry, terminal Link) (*Chain, error) {
	mws := make([]Middleware, len(entries))
	for i, e := range entries {
		m, err := e.resolve(route)
		if err != nil {
			return nil, FactoryError{Route: route.OperationName(), Index: i, Cause: err}
		}
		if m == nil {
			return nil, EmptyEntryError{Route: route.OperationName(), Index: i}
		}
		mws[i] = m
	}

	link := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		link = wrap(mws[i], link)
	}

	c := &Chain{
		route: route,
		link:  link,
	}
	return c, nil
}

func wrap(m Middleware, inner Link) Link {
	return func(ctx context.Context, rc *RequestContext, args Args) (any, error) {
		return m.Intercept(ctx, rc, Next{rc: rc, args: args, link: inner})
	}
}

// Route returns the route the chain was compiled for.
func (c *Chain) Route() RouteInfo {
	return c.route
}

// Run executes the chain for one request.
func (c *Chain) Run(ctx context.Context, rc *RequestContext, args Args) (any, error) {
	return c.link(ctx, rc, args)
}

// Terminal returns the [Link] invoking h.
func Terminal(h Handler) Link {
	return func(ctx context.Context, rc *RequestContext, args Args) (any, error) {
		rc.Args = args
		return h.Invoke(ctx, args)
	}
}
