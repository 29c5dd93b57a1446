// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("will assign increasing ids", func(t *testing.T) {
		s := NewStore()

		a, err := s.Add(ctx, Pet{Name: "rex"})
		require.NoError(t, err)
		b, err := s.Add(ctx, Pet{Name: "tom"})
		require.NoError(t, err)

		require.Equal(t, int64(1), a.ID)
		require.Equal(t, int64(2), b.ID)
	})

	t.Run("will filter and limit the listing", func(t *testing.T) {
		s := NewStore()
		for _, p := range []Pet{{Name: "rex", Tag: "dog"}, {Name: "tom", Tag: "cat"}, {Name: "fido", Tag: "Dog"}} {
			_, err := s.Add(ctx, p)
			require.NoError(t, err)
		}

		dogs, err := s.List(ctx, "dog", 0)
		require.NoError(t, err)
		require.Equal(t, []Pet{{ID: 1, Name: "rex", Tag: "dog"}, {ID: 3, Name: "fido", Tag: "Dog"}}, dogs)

		first, err := s.List(ctx, "", 1)
		require.NoError(t, err)
		require.Len(t, first, 1)
		require.Equal(t, int64(1), first[0].ID)
	})

	t.Run("will return ErrNotFound", func(t *testing.T) {
		t.Run("if the pet does not exist", func(t *testing.T) {
			s := NewStore()

			_, err := s.Get(ctx, 7)
			require.ErrorIs(t, err, ErrNotFound)
			require.ErrorIs(t, s.Delete(ctx, 7), ErrNotFound)
		})
	})
}
