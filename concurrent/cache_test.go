// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package concurrent

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetOr(t *testing.T) {
	t.Run("will compute each key once", func(t *testing.T) {
		c := NewCache[string, int]()

		var calls atomic.Int64
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				v, err := c.GetOr("answer", func() (int, error) {
					calls.Add(1)
					return 42, nil
				})
				assert.NoError(t, err)
				assert.Equal(t, 42, v)
			}()
		}
		wg.Wait()

		require.Equal(t, int64(1), calls.Load())
		require.Equal(t, 1, c.Len())
	})

	t.Run("will not cache errors", func(t *testing.T) {
		c := NewCache[string, int]()
		failed := errors.New("failed")

		_, err := c.GetOr("k", func() (int, error) { return 0, failed })
		require.ErrorIs(t, err, failed)

		_, ok := c.Get("k")
		require.False(t, ok)

		v, err := c.GetOr("k", func() (int, error) { return 7, nil })
		require.NoError(t, err)
		require.Equal(t, 7, v)
	})
}

func TestCache_Range(t *testing.T) {
	c := NewCache[string, int]()
	for k, v := range map[string]int{"a": 1, "b": 2} {
		_, err := c.GetOr(k, func() (int, error) { return v, nil })
		require.NoError(t, err)
	}

	seen := make(map[string]int)
	c.Range(func(k string, v int) {
		seen[k] = v
	})
	require.Equal(t, map[string]int{"a": 1, "b": 2}, seen)
}
