package gate

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/token"
	"github.com/teemow/mailcal/internal/tokenstore"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeRefresher struct {
	calls   atomic.Int32
	block   chan struct{}
	refresh func(rt string) (*token.Bundle, error)
}

func (f *fakeRefresher) Refresh(ctx context.Context, rt string) (*token.Bundle, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.refresh(rt)
}

func refreshOK(now time.Time) func(string) (*token.Bundle, error) {
	return func(string) (*token.Bundle, error) {
		return &token.Bundle{
			AccessToken:   "ya29.fresh",
			ExpiresAt:     now.Add(time.Hour),
			GrantedScopes: token.NewScopeSet(),
			TokenType:     token.TypeBearer,
		}, nil
	}
}

type failingStore struct {
	tokenstore.Store
	err error
}

func (f failingStore) Load(context.Context, string) (*token.Bundle, error) { return nil, f.err }

type testEnv struct {
	gate      *Gate
	store     *tokenstore.MemoryStore
	refresher *fakeRefresher
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     tokenstore.NewMemoryStore(nil),
		refresher: &fakeRefresher{refresh: refreshOK(testNow)},
		now:       testNow,
	}
	var err error
	env.gate, err = New(Config{
		Store:     env.store,
		Refresher: env.refresher,
		Clock:     func() time.Time { return env.now },
	})
	require.NoError(t, err)
	return env
}

func (e *testEnv) put(t *testing.T, sessionID string, b *token.Bundle) {
	t.Helper()
	require.NoError(t, e.store.Replace(context.Background(), sessionID, b))
}

func (e *testEnv) stored(t *testing.T, sessionID string) *token.Bundle {
	t.Helper()
	b, err := e.store.Load(context.Background(), sessionID)
	require.NoError(t, err)
	return b
}

func grantFor(caps ...google.Capability) token.ScopeSet {
	return google.NewScopeCatalog().ScopesFor(caps...)
}

func validBundle(expires time.Time, caps ...google.Capability) *token.Bundle {
	return &token.Bundle{
		AccessToken:   "ya29.current",
		RefreshToken:  "1//refresh",
		ExpiresAt:     expires,
		GrantedScopes: grantFor(caps...),
		TokenType:     token.TypeBearer,
	}
}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, DefaultStartURL, u.Path)
	return u.Query()
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestEnsure_NoBundle(t *testing.T) {
	env := newTestEnv(t)

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.GmailRead})
	require.NoError(t, err)

	assert.False(t, d.Ready())
	assert.Equal(t, ReasonNeedsAuth, d.Reason)
	assert.False(t, d.ForceConsent)
	q := query(t, d.RedirectURL)
	assert.Equal(t, "gmail.read", q.Get("capabilities"))
	assert.Empty(t, q.Get("force"))
	assert.Zero(t, env.refresher.calls.Load())
}

func TestEnsure_EmptySession(t *testing.T) {
	env := newTestEnv(t)

	d, err := env.gate.Ensure(context.Background(), "", []google.Capability{google.CalendarRead})
	require.NoError(t, err)
	assert.Equal(t, ReasonNeedsAuth, d.Reason)
}

func TestEnsure_MalformedBundleIsDiscarded(t *testing.T) {
	env := newTestEnv(t)
	// a bundle with an access token but no expiry cannot be decoded
	env.put(t, "s1", &token.Bundle{AccessToken: "ya29.x"})

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.GmailRead})
	require.NoError(t, err)

	assert.Equal(t, ReasonInvalidToken, d.Reason)
	assert.False(t, d.ForceConsent)
	_, err = env.store.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestEnsure_MissingScopeForcesConsentForUnion(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow.Add(time.Hour), google.GmailRead))

	caps := []google.Capability{google.GmailRead, google.CalendarWrite}
	d, err := env.gate.Ensure(context.Background(), "s1", caps)
	require.NoError(t, err)

	assert.Equal(t, ReasonNeedsScope, d.Reason)
	assert.True(t, d.ForceConsent)
	q := query(t, d.RedirectURL)
	assert.Equal(t, "true", q.Get("force"))
	requested, err := google.ParseCapabilities(q.Get("capabilities"))
	require.NoError(t, err)
	assert.Equal(t, caps, requested, "the redirect asks for the whole set, not the missing part")
	assert.Zero(t, env.refresher.calls.Load())
}

func TestEnsure_ValidIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow.Add(time.Minute), google.CalendarRead))

	for i := 0; i < 2; i++ {
		d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.CalendarRead})
		require.NoError(t, err)
		assert.True(t, d.Ready())
		assert.Equal(t, "ya29.current", d.AccessToken)
		assert.False(t, d.Refreshed)
	}
	assert.Zero(t, env.refresher.calls.Load())
}

func TestEnsure_ExpiryBoundaryRefreshes(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow, google.CalendarRead))

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.CalendarRead})
	require.NoError(t, err)
	assert.True(t, d.Refreshed)
	assert.Equal(t, int32(1), env.refresher.calls.Load())
}

func TestEnsure_RefreshSuccess(t *testing.T) {
	env := newTestEnv(t)
	old := validBundle(testNow.Add(-time.Minute), google.CalendarRead, google.GmailRead)
	env.put(t, "s1", old)

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.CalendarRead})
	require.NoError(t, err)
	require.True(t, d.Ready())
	assert.Equal(t, "ya29.fresh", d.AccessToken)
	assert.True(t, d.Refreshed)

	stored := env.stored(t, "s1")
	assert.True(t, stored.ExpiresAt.After(old.ExpiresAt))
	assert.Equal(t, "1//refresh", stored.RefreshToken, "refresh token must be preserved")
	assert.Equal(t, old.GrantedScopes.Sorted(), stored.GrantedScopes.Sorted(), "grant must be kept when the response omits scope")

	// the refreshed token is now used without another refresh
	d, err = env.gate.Ensure(context.Background(), "s1", []google.Capability{google.CalendarRead})
	require.NoError(t, err)
	assert.False(t, d.Refreshed)
	assert.Equal(t, int32(1), env.refresher.calls.Load())
}

func TestEnsure_RefreshNarrowsGrant(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow.Add(-time.Minute), google.CalendarRead, google.CalendarWrite))
	env.refresher.refresh = func(string) (*token.Bundle, error) {
		return &token.Bundle{
			AccessToken:   "ya29.fresh",
			ExpiresAt:     testNow.Add(time.Hour),
			GrantedScopes: grantFor(google.CalendarRead),
		}, nil
	}

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.CalendarWrite})
	require.NoError(t, err)
	assert.Equal(t, ReasonNeedsScope, d.Reason)
	assert.True(t, d.ForceConsent)
}

func TestEnsure_RefreshRejected(t *testing.T) {
	env := newTestEnv(t)
	old := validBundle(testNow.Add(-time.Minute), google.GmailRead)
	env.put(t, "s1", old)
	env.refresher.refresh = func(string) (*token.Bundle, error) {
		return nil, &google.RefreshError{Kind: google.RefreshTokenInvalid, Err: errors.New("invalid_grant")}
	}

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.GmailRead})
	require.NoError(t, err)
	assert.Equal(t, ReasonRefreshRejected, d.Reason)
	assert.True(t, d.ForceConsent)
	assert.Equal(t, "true", query(t, d.RedirectURL).Get("force"))

	// only logout removes the bundle
	assert.Equal(t, old.AccessToken, env.stored(t, "s1").AccessToken)
}

func TestEnsure_NoRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	b := validBundle(testNow.Add(-time.Minute), google.GmailRead)
	b.RefreshToken = ""
	env.put(t, "s1", b)

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.GmailRead})
	require.NoError(t, err)
	assert.Equal(t, ReasonRefreshRejected, d.Reason)
	assert.True(t, d.ForceConsent)
	assert.Zero(t, env.refresher.calls.Load())
}

func TestEnsure_NetworkFailureIsTransient(t *testing.T) {
	env := newTestEnv(t)
	old := validBundle(testNow.Add(-time.Minute), google.GmailRead)
	env.put(t, "s1", old)
	env.refresher.refresh = func(string) (*token.Bundle, error) {
		return nil, &google.RefreshError{Kind: google.RefreshNetworkFailure, Err: errors.New("connection reset")}
	}

	d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.GmailRead})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Empty(t, d.RedirectURL, "a transient failure never redirects")

	stored := env.stored(t, "s1")
	assert.Equal(t, old.AccessToken, stored.AccessToken)
	assert.Equal(t, old.RefreshToken, stored.RefreshToken)
	assert.True(t, old.ExpiresAt.Equal(stored.ExpiresAt))
}

func TestEnsure_StoreFailureIsTransient(t *testing.T) {
	env := newTestEnv(t)
	env.gate.store = failingStore{Store: env.store, err: errors.New("redis: connection refused")}

	_, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.GmailRead})
	var terr *TransientAuthError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "load", terr.Op)
	assert.True(t, terr.Retryable())
}

func TestEnsure_ConcurrentRefreshHappensOnce(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow.Add(-time.Minute), google.CalendarRead))
	env.refresher.block = make(chan struct{})

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.CalendarRead})
			tokens[i], errs[i] = d.AccessToken, err
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(env.refresher.block)
	wg.Wait()

	assert.Equal(t, int32(1), env.refresher.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "ya29.fresh", tokens[i])
	}
}

func TestEnsure_RedirectIsStable(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s2", validBundle(testNow.Add(time.Hour), google.GmailRead))

	tests := []struct {
		name      string
		sessionID string
		caps      []google.Capability
	}{
		{name: "no token", sessionID: "s1", caps: []google.Capability{google.GmailRead}},
		{name: "missing scope", sessionID: "s2", caps: []google.Capability{google.CalendarWrite}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := env.gate.Ensure(context.Background(), tt.sessionID, tt.caps)
			require.NoError(t, err)
			second, err := env.gate.Ensure(context.Background(), tt.sessionID, tt.caps)
			require.NoError(t, err)

			require.NotEmpty(t, first.RedirectURL)
			assert.Equal(t, first, second)
		})
	}
	assert.Zero(t, env.refresher.calls.Load())
}

func TestEnsure_CustomStartURL(t *testing.T) {
	g, err := New(Config{
		Store:     tokenstore.NewMemoryStore(nil),
		Refresher: &fakeRefresher{refresh: refreshOK(testNow)},
		StartURL:  "https://mail.example.com/auth/start",
	})
	require.NoError(t, err)

	d, err := g.Ensure(context.Background(), "s1", []google.Capability{google.CalendarRead, google.GmailSend})
	require.NoError(t, err)
	assert.Equal(t, "https://mail.example.com/auth/start?capabilities=calendar.read%2Cgmail.send", d.RedirectURL)
}

func TestStartURL(t *testing.T) {
	assert.Equal(t, "/auth/start?capabilities=gmail.read", StartURL(DefaultStartURL, []google.Capability{google.GmailRead}, false))
	assert.Equal(t, "/auth/start?capabilities=calendar.write&force=true",
		StartURL(DefaultStartURL, []google.Capability{google.CalendarWrite}, true))
}

func TestConsentRequired(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow.Add(time.Hour), google.GmailRead))

	d, err := env.gate.ConsentRequired(context.Background(), "s1", []google.Capability{google.GmailRead})
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidToken, d.Reason)
	assert.True(t, d.ForceConsent)
	assert.Equal(t, "true", query(t, d.RedirectURL).Get("force"))
}

func TestEnsure_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	env := newTestEnv(t)
	env.put(t, "s1", validBundle(testNow.Add(-time.Minute), google.CalendarRead))

	_, err := env.gate.Ensure(context.Background(), "s1", []google.Capability{google.CalendarRead})
	require.NoError(t, err)
	_, err = env.gate.Ensure(context.Background(), "s2", []google.Capability{google.GmailRead})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	want := []struct {
		session  string
		decision string
	}{
		{session: logging.SessionHash("s1"), decision: instrumentation.DecisionRefreshed},
		{session: logging.SessionHash("s2"), decision: instrumentation.DecisionRedirect},
	}
	for i, span := range spans {
		assert.Equal(t, "gate.ensure", span.Name())
		attrs := make(map[attribute.Key]attribute.Value)
		for _, kv := range span.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		assert.Equal(t, want[i].session, attrs[instrumentation.SpanAttrSession].AsString())
		assert.Equal(t, want[i].decision, attrs[instrumentation.SpanAttrDecision].AsString())
		assert.NotEmpty(t, attrs[instrumentation.SpanAttrCapabilities].AsStringSlice())
	}
}
