package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailcal/internal/token"
)

func testBundle() *token.Bundle {
	return &token.Bundle{
		AccessToken:   "ya29.access",
		RefreshToken:  "1//refresh",
		ExpiresAt:     time.UnixMilli(1_900_000_000_000),
		GrantedScopes: token.NewScopeSet("scope-a", "scope-b"),
		TokenType:     token.TypeBearer,
	}
}

// testStoreContract runs the behavior every Store must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("load absent", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("replace then load", func(t *testing.T) {
		s := newStore(t)
		want := testBundle()
		require.NoError(t, s.Replace(ctx, "s1", want))

		got, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, want.AccessToken, got.AccessToken)
		assert.Equal(t, want.RefreshToken, got.RefreshToken)
		assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
		assert.Equal(t, want.GrantedScopes.Sorted(), got.GrantedScopes.Sorted())
	})

	t.Run("replace overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Replace(ctx, "s1", testBundle()))

		next := testBundle()
		next.AccessToken = "ya29.second"
		next.RefreshToken = ""
		require.NoError(t, s.Replace(ctx, "s1", next))

		got, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "ya29.second", got.AccessToken)
		assert.Empty(t, got.RefreshToken)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Replace(ctx, "s1", testBundle()))
		_, err := s.Load(ctx, "s2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Replace(ctx, "s1", testBundle()))
		require.NoError(t, s.Delete(ctx, "s1"))
		_, err := s.Load(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete absent is a no-op", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Delete(ctx, "never-stored"))
	})

	t.Run("rejects empty session", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.Replace(ctx, "", testBundle()))
	})

	t.Run("rejects bundle without access token", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.Replace(ctx, "s1", &token.Bundle{}))
	})
}
