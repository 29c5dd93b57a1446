// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"reflect"
)

// Handler is the terminal function of a pipeline. Arity is the number of
// positional arguments the handler declares and every argument position
// must be bound before the handler can be routed.
type Handler interface {
	Arity() int
	Invoke(ctx context.Context, args Args) (any, error)
}

type funcHandler struct {
	arity int
	f     func(context.Context, Args) (any, error)
}

func (h funcHandler) Arity() int {
	return h.arity
}

func (h funcHandler) Invoke(ctx context.Context, args Args) (any, error) {
	if len(args) != h.arity {
		return nil, ArgumentCountError{Want: h.arity, Got: len(args)}
	}
	return h.f(ctx, args)
}

// Func wraps an untyped function as a [Handler] with the given arity.
func Func(arity int, f func(context.Context, Args) (any, error)) Handler {
	return funcHandler{arity: arity, f: f}
}

// Func0 adapts a handler which takes no positional arguments.
func Func0[Resp any](f func(context.Context) (Resp, error)) Handler {
	return Func(0, func(ctx context.Context, _ Args) (any, error) {
		resp, err := f(ctx)
		return value(resp), err
	})
}

// Func1 adapts a handler which takes one positional argument.
func Func1[A, Resp any](f func(context.Context, A) (Resp, error)) Handler {
	return Func(1, func(ctx context.Context, args Args) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}

		resp, err := f(ctx, a)
		return value(resp), err
	})
}

// Func2 adapts a handler which takes two positional arguments.
func Func2[A, B, Resp any](f func(context.Context, A, B) (Resp, error)) Handler {
	return Func(2, func(ctx context.Context, args Args) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}

		resp, err := f(ctx, a, b)
		return value(resp), err
	})
}

// Func3 adapts a handler which takes three positional arguments.
func Func3[A, B, C, Resp any](f func(context.Context, A, B, C) (Resp, error)) Handler {
	return Func(3, func(ctx context.Context, args Args) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := Arg[C](args, 2)
		if err != nil {
			return nil, err
		}

		resp, err := f(ctx, a, b, c)
		return value(resp), err
	})
}

// value maps typed nil pointers and interfaces to an untyped nil so the
// dispatcher sees them as "no value".
func value(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}
