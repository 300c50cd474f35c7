package google

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresher_Refresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("refresh token preserved when omitted", func(t *testing.T) {
		ep := newFakeTokenEndpoint(t, http.StatusOK, map[string]any{
			"access_token": "at-2",
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
		r, err := NewRefresher(ep.config())
		require.NoError(t, err)

		b, err := r.Refresh(context.Background(), "rt-1")
		require.NoError(t, err)
		assert.Equal(t, "at-2", b.AccessToken)
		assert.Equal(t, "rt-1", b.RefreshToken)
		assert.Empty(t, b.GrantedScopes)
		assert.Equal(t, "refresh_token", ep.form().Get("grant_type"))
		assert.Equal(t, "rt-1", ep.form().Get("refresh_token"))
	})

	t.Run("rotated refresh token", func(t *testing.T) {
		ep := newFakeTokenEndpoint(t, http.StatusOK, map[string]any{
			"access_token":  "at-2",
			"refresh_token": "rt-2",
			"expires_in":    3600,
			"scope":         "a b",
		})
		r, err := NewRefresher(ep.config())
		require.NoError(t, err)

		b, err := r.Refresh(context.Background(), "rt-1")
		require.NoError(t, err)
		assert.Equal(t, "rt-2", b.RefreshToken)
		assert.Equal(t, []string{"a", "b"}, b.GrantedScopes.Sorted())
	})

	t.Run("missing expiry defaults to one hour", func(t *testing.T) {
		ep := newFakeTokenEndpoint(t, http.StatusOK, map[string]any{"access_token": "at-2"})
		r, err := NewRefresher(ep.config(), WithClock(fixedClock(now)))
		require.NoError(t, err)

		b, err := r.Refresh(context.Background(), "rt-1")
		require.NoError(t, err)
		assert.Equal(t, now.Add(DefaultAccessTokenTTL), b.ExpiresAt)
	})

	t.Run("no refresh token", func(t *testing.T) {
		ep := newFakeTokenEndpoint(t, http.StatusOK, nil)
		r, err := NewRefresher(ep.config())
		require.NoError(t, err)

		_, err = r.Refresh(context.Background(), "")
		require.ErrorIs(t, err, ErrConsentRequired)
		assert.Zero(t, ep.calls.Load())
	})
}

func TestRefresher_RefreshErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		kind    RefreshErrorKind
		consent bool
	}{
		{
			name:    "revoked",
			status:  http.StatusBadRequest,
			body:    map[string]any{"error": "invalid_grant", "error_description": "Token has been expired or revoked."},
			kind:    RefreshTokenInvalid,
			consent: true,
		},
		{
			name:    "unauthorized client",
			status:  http.StatusUnauthorized,
			body:    map[string]any{"error": "unauthorized_client"},
			kind:    RefreshTokenInvalid,
			consent: true,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   map[string]any{"error": "internal_failure"},
			kind:   RefreshNetworkFailure,
		},
		{
			name:   "unavailable",
			status: http.StatusBadGateway,
			body:   map[string]any{},
			kind:   RefreshNetworkFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := newFakeTokenEndpoint(t, tt.status, tt.body)
			r, err := NewRefresher(ep.config())
			require.NoError(t, err)

			_, err = r.Refresh(context.Background(), "rt-1")
			var rerr *RefreshError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.kind, rerr.Kind)
			assert.Equal(t, tt.consent, errors.Is(err, ErrConsentRequired))
		})
	}
}

func TestRefresher_UnreachableEndpoint(t *testing.T) {
	ep := newFakeTokenEndpoint(t, http.StatusOK, nil)
	cfg := ep.config()
	ep.server.Close()

	r, err := NewRefresher(cfg)
	require.NoError(t, err)

	_, err = r.Refresh(context.Background(), "rt-1")
	var rerr *RefreshError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, RefreshNetworkFailure, rerr.Kind)
	assert.False(t, errors.Is(err, ErrConsentRequired))
}

func TestRefresher_CanceledContext(t *testing.T) {
	ep := newFakeTokenEndpoint(t, http.StatusOK, map[string]any{"access_token": "x"})
	r, err := NewRefresher(ep.config())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Refresh(ctx, "rt-1")
	var rerr *RefreshError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, RefreshNetworkFailure, rerr.Kind)
}
