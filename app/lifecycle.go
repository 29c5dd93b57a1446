// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"slices"
)

// Hook releases a resource once the [Runtime] has returned.
type Hook func(context.Context) error

// Lifecycle collects stop hooks while a [Runtime] is being built.
type Lifecycle struct {
	hooks []Hook
}

// OnStop registers h. Hooks run in reverse registration order, like
// deferred calls, so resources are released before what they depend on.
func (l *Lifecycle) OnStop(h Hook) {
	l.hooks = append(l.hooks, h)
}

func (l *Lifecycle) stop(ctx context.Context) error {
	var errs []error
	for _, h := range slices.Backward(l.hooks) {
		errs = append(errs, h(ctx))
	}
	return errors.Join(errs...)
}

type managed struct {
	inner Runtime
	lc    *Lifecycle
}

func (m managed) Run(ctx context.Context) error {
	err := m.inner.Run(ctx)
	return errors.Join(err, m.lc.stop(context.WithoutCancel(ctx)))
}

// WithLifecycle returns a [Builder] whose [Runtime] runs every stop hook
// registered by f after the runtime built by f returns. Every hook runs even
// if the runtime or another hook fails and all errors are joined. Hooks also
// run when f itself fails so partially built resources are released.
func WithLifecycle[T Runtime](f func(context.Context, *Lifecycle) (T, error)) Builder[Runtime] {
	return BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		lc := &Lifecycle{}

		inner, err := f(ctx, lc)
		if err != nil {
			return nil, errors.Join(err, lc.stop(context.WithoutCancel(ctx)))
		}
		return managed{inner: inner, lc: lc}, nil
	})
}
