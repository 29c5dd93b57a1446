// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinary_Healthy(t *testing.T) {
	t.Run("will be unhealthy", func(t *testing.T) {
		t.Run("if it is the zero value", func(t *testing.T) {
			var b Binary

			healthy, err := b.Healthy(context.Background())
			assert.Nil(t, err)
			assert.False(t, healthy)
		})

		t.Run("if it was marked unhealthy", func(t *testing.T) {
			b := Healthy()
			b.MarkUnhealthy()

			healthy, err := b.Healthy(context.Background())
			assert.Nil(t, err)
			assert.False(t, healthy)
		})
	})
}

func TestAnd_Healthy(t *testing.T) {
	t.Run("will return healthy", func(t *testing.T) {
		t.Run("if every Monitor is healthy", func(t *testing.T) {
			and := And{Healthy(), Healthy()}

			healthy, err := and.Healthy(context.Background())
			assert.Nil(t, err)
			assert.True(t, healthy)
		})
	})

	t.Run("will return unhealthy", func(t *testing.T) {
		t.Run("if at least one of the Monitors return unhealthy", func(t *testing.T) {
			and := And{Healthy(), new(Binary), Healthy()}

			healthy, err := and.Healthy(context.Background())
			assert.Nil(t, err)
			assert.False(t, healthy)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if at least one of the Monitors return an error", func(t *testing.T) {
			healthErr := errors.New("failed to check health status")
			failing := MonitorFunc(func(ctx context.Context) (bool, error) {
				return true, healthErr
			})

			and := And{Healthy(), failing, Healthy()}

			healthy, err := and.Healthy(context.Background())
			assert.ErrorIs(t, err, healthErr)
			assert.False(t, healthy)
		})
	})
}
