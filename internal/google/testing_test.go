package google

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// fakeTokenEndpoint serves the token and revoke endpoints with a fixed response.
type fakeTokenEndpoint struct {
	server *httptest.Server
	calls  atomic.Int32

	status int
	body   map[string]any

	mu       sync.Mutex
	lastPath string
	lastForm url.Values
}

func newFakeTokenEndpoint(t *testing.T, status int, body map[string]any) *fakeTokenEndpoint {
	t.Helper()
	f := &fakeTokenEndpoint{status: status, body: body}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		_ = r.ParseForm()
		f.mu.Lock()
		f.lastPath = r.URL.Path
		f.lastForm = r.PostForm
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(f.body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTokenEndpoint) form() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

func (f *fakeTokenEndpoint) path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath
}

func (f *fakeTokenEndpoint) config() AuthConfig {
	return AuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.server.URL + "/auth",
			TokenURL:  f.server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RevokeURL: f.server.URL + "/revoke",
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
