// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app composes the long running parts of a tapestry service.
//
// A [Builder] constructs a [Runtime] from configuration and [Run] drives it
// until the process receives SIGINT or SIGTERM. Resources opened while
// building are released by stop hooks registered on a [Lifecycle].
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Builder constructs a T.
type Builder[T any] interface {
	Build(context.Context) (T, error)
}

// BuilderFunc is a function adapter that implements [Builder].
type BuilderFunc[T any] func(context.Context) (T, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) {
	return f(ctx)
}

// Bind builds an A and uses it to choose the [Builder] of a B.
func Bind[A, B any](b Builder[A], f func(A) Builder[B]) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		a, err := b.Build(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a).Build(ctx)
	})
}

// Runtime is anything which runs until its context is cancelled.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a function adapter that implements [Runtime].
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Run builds a [Runtime] and runs it. The context passed to both is
// cancelled when the process is interrupted or terminated.
func Run[T Runtime](ctx context.Context, b Builder[T]) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := b.Build(ctx)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}
