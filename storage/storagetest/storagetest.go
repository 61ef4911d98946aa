// Package storagetest holds the behaviour every storage.Storage must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-session-client/storage"
	"github.com/stretchr/testify/require"
)

// Run exercises s against the storage.Storage contract. s must start empty.
func Run(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key is not an error", func(t *testing.T) {
		v, ok, err := s.GetItem(ctx, "absent")
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "accessToken", "AT1"))
		v, ok, err := s.GetItem(ctx, "accessToken")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "AT1", v)
	})

	t.Run("set replaces", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "accessToken", "AT2"))
		v, _, err := s.GetItem(ctx, "accessToken")
		require.NoError(t, err)
		require.Equal(t, "AT2", v)
	})

	t.Run("empty value is stored", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "blank", ""))
		v, ok, err := s.GetItem(ctx, "blank")
		require.NoError(t, err)
		require.True(t, ok)
		require.Empty(t, v)
		require.NoError(t, s.RemoveItem(ctx, "blank"))
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, s.RemoveItem(ctx, "accessToken"))
		require.NoError(t, s.RemoveItem(ctx, "accessToken"))
		_, ok, err := s.GetItem(ctx, "accessToken")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "a", "1"))
		require.NoError(t, s.SetItem(ctx, "b", "2"))
		require.NoError(t, s.RemoveItem(ctx, "a"))
		v, ok, err := s.GetItem(ctx, "b")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "2", v)
		require.NoError(t, s.RemoveItem(ctx, "b"))
	})

	t.Run("empty key rejected", func(t *testing.T) {
		require.Error(t, s.SetItem(ctx, "", "x"))
		_, _, err := s.GetItem(ctx, "")
		require.Error(t, err)
		require.Error(t, s.RemoveItem(ctx, ""))
	})
}
