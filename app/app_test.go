// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("will return the build error", func(t *testing.T) {
		t.Run("if the builder fails", func(t *testing.T) {
			buildErr := errors.New("failed to build")
			b := BuilderFunc[RuntimeFunc](func(ctx context.Context) (RuntimeFunc, error) {
				return nil, buildErr
			})

			err := Run(context.Background(), b)
			require.ErrorIs(t, err, buildErr)
		})
	})

	t.Run("will return the runtime error", func(t *testing.T) {
		runErr := errors.New("failed to run")
		b := BuilderFunc[RuntimeFunc](func(ctx context.Context) (RuntimeFunc, error) {
			return func(ctx context.Context) error { return runErr }, nil
		})

		err := Run(context.Background(), b)
		require.ErrorIs(t, err, runErr)
	})
}

func TestBind(t *testing.T) {
	t.Run("will pass the first value to the binder", func(t *testing.T) {
		port := BuilderFunc[int](func(ctx context.Context) (int, error) {
			return 8080, nil
		})

		addr := Bind(port, func(p int) Builder[string] {
			return BuilderFunc[string](func(ctx context.Context) (string, error) {
				if p != 8080 {
					return "", errors.New("unexpected port")
				}
				return ":8080", nil
			})
		})

		v, err := addr.Build(context.Background())
		require.NoError(t, err)
		require.Equal(t, ":8080", v)
	})

	t.Run("will not call the binder", func(t *testing.T) {
		t.Run("if the first builder fails", func(t *testing.T) {
			buildErr := errors.New("failed")
			called := false

			b := Bind(
				BuilderFunc[int](func(ctx context.Context) (int, error) { return 0, buildErr }),
				func(int) Builder[int] {
					called = true
					return nil
				},
			)

			_, err := b.Build(context.Background())
			require.ErrorIs(t, err, buildErr)
			require.False(t, called)
		})
	})
}

func TestWithLifecycle(t *testing.T) {
	t.Run("will run stop hooks in reverse order", func(t *testing.T) {
		var order []string
		b := WithLifecycle(func(ctx context.Context, lc *Lifecycle) (RuntimeFunc, error) {
			lc.OnStop(func(context.Context) error {
				order = append(order, "db")
				return nil
			})
			lc.OnStop(func(context.Context) error {
				order = append(order, "cache")
				return nil
			})
			return func(ctx context.Context) error {
				order = append(order, "run")
				return nil
			}, nil
		})

		rt, err := b.Build(context.Background())
		require.NoError(t, err)
		require.NoError(t, rt.Run(context.Background()))
		require.Equal(t, []string{"run", "cache", "db"}, order)
	})

	t.Run("will join every error", func(t *testing.T) {
		runErr := errors.New("run")
		hookErr := errors.New("hook")
		ran := false

		b := WithLifecycle(func(ctx context.Context, lc *Lifecycle) (RuntimeFunc, error) {
			lc.OnStop(func(context.Context) error {
				ran = true
				return nil
			})
			lc.OnStop(func(context.Context) error { return hookErr })
			return func(ctx context.Context) error { return runErr }, nil
		})

		rt, err := b.Build(context.Background())
		require.NoError(t, err)

		err = rt.Run(context.Background())
		require.ErrorIs(t, err, runErr)
		require.ErrorIs(t, err, hookErr)
		require.True(t, ran)
	})

	t.Run("will give hooks a live context", func(t *testing.T) {
		t.Run("if the run context was cancelled", func(t *testing.T) {
			var hookCtxErr error
			b := WithLifecycle(func(ctx context.Context, lc *Lifecycle) (RuntimeFunc, error) {
				lc.OnStop(func(ctx context.Context) error {
					hookCtxErr = ctx.Err()
					return nil
				})
				return func(ctx context.Context) error { return nil }, nil
			})

			rt, err := b.Build(context.Background())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			require.NoError(t, rt.Run(ctx))
			require.NoError(t, hookCtxErr)
		})
	})

	t.Run("will release registered resources", func(t *testing.T) {
		t.Run("if building fails", func(t *testing.T) {
			buildErr := errors.New("build")
			released := false

			b := WithLifecycle(func(ctx context.Context, lc *Lifecycle) (RuntimeFunc, error) {
				lc.OnStop(func(context.Context) error {
					released = true
					return nil
				})
				return nil, buildErr
			})

			_, err := b.Build(context.Background())
			require.ErrorIs(t, err, buildErr)
			require.True(t, released)
		})
	})
}
