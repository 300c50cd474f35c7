package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailcal/internal/google"
)

func TestEvaluate(t *testing.T) {
	catalog := google.NewScopeCatalog()
	now := testNow

	tests := []struct {
		name      string
		expires   time.Duration
		granted   []google.Capability
		noRefresh bool
		caps      []google.Capability
		state     State
		missing   []google.Capability
		connected bool
	}{
		{
			name:      "valid",
			expires:   time.Hour,
			granted:   []google.Capability{google.GmailRead},
			caps:      []google.Capability{google.GmailRead},
			state:     StateValid,
			connected: true,
		},
		{
			name:      "expired but refreshable",
			expires:   -time.Hour,
			granted:   []google.Capability{google.CalendarRead},
			caps:      []google.Capability{google.CalendarRead},
			state:     StateExpired,
			connected: true,
		},
		{
			name:      "expired without refresh token",
			expires:   0,
			granted:   []google.Capability{google.CalendarRead},
			noRefresh: true,
			caps:      []google.Capability{google.CalendarRead},
			state:     StateExpired,
		},
		{
			name:      "scope insufficient",
			expires:   time.Hour,
			granted:   []google.Capability{google.CalendarRead},
			caps:      []google.Capability{google.CalendarRead, google.CalendarWrite},
			state:     StateScopeInsufficient,
			missing:   []google.Capability{google.CalendarWrite},
			connected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle(now.Add(tt.expires), tt.granted...)
			if tt.noRefresh {
				b.RefreshToken = ""
			}
			st := Evaluate(catalog, b, tt.caps, now)
			assert.Equal(t, tt.state, st.State)
			assert.Equal(t, tt.missing, st.Missing)
			assert.Equal(t, tt.connected, st.Connected)
		})
	}
}

func TestEvaluate_Unauthenticated(t *testing.T) {
	st := Evaluate(google.NewScopeCatalog(), nil, []google.Capability{google.GmailRead}, testNow)
	assert.Equal(t, StateUnauthenticated, st.State)
	assert.False(t, st.Connected)
	assert.Equal(t, []google.Capability{google.GmailRead}, st.Missing)
	assert.Len(t, st.Capabilities, len(google.AllCapabilities()))
}

func TestInspect(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow.Add(-time.Minute), google.GmailRead, google.GmailSend))

	st, err := env.gate.Inspect(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, st.State)
	assert.True(t, st.Connected)
	assert.Equal(t, map[google.Capability]bool{
		google.GmailRead:     true,
		google.GmailSend:     true,
		google.CalendarRead:  false,
		google.CalendarWrite: false,
	}, st.Capabilities)
	assert.Zero(t, env.refresher.calls.Load(), "inspect never refreshes")

	st, err = env.gate.Inspect(context.Background(), "unknown", nil)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, st.State)
}
