// Package tooltest provides a wired ServerContext backed by in-memory stores
// and a fake Google API for testing MCP tools.
package tooltest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/teemow/mailcal/internal/calendar"
	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/server"
	"github.com/teemow/mailcal/internal/token"
	"github.com/teemow/mailcal/internal/tokenstore"
)

// FakeGoogle serves the Gmail and Calendar endpoints the tools reach.
type FakeGoogle struct {
	mu       sync.Mutex
	status   int
	queries  []string
	inserted map[string]any
	sent     int
}

// SetStatus makes every request fail with status. Zero restores success.
func (f *FakeGoogle) SetStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// Queries returns the Gmail search queries received so far.
func (f *FakeGoogle) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Inserted returns the body of the last created event.
func (f *FakeGoogle) Inserted() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserted
}

// Sent returns the number of messages sent.
func (f *FakeGoogle) Sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func (f *FakeGoogle) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if f.status != 0 {
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": f.status, "message": "denied"}})
		return
	}

	switch {
	case r.URL.Path == "/gmail/v1/users/me/messages":
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "m1", "threadId": "t1"}},
		})
	case r.URL.Path == "/gmail/v1/users/me/messages/m1":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "m1",
			"threadId": "t1",
			"snippet":  "see you tomorrow",
			"payload": map[string]any{
				"headers": []map[string]string{
					{"name": "Subject", "value": "Lunch"},
					{"name": "From", "value": "alice@example.com"},
				},
			},
		})
	case r.URL.Path == "/gmail/v1/users/me/messages/send":
		f.sent++
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "sent-1"})
	case r.Method == http.MethodGet && r.URL.Path == "/calendar/v3/calendars/primary/events":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id":      "e1",
				"summary": "Standup",
				"start":   map[string]string{"dateTime": "2026-05-04T09:00:00Z"},
				"end":     map[string]string{"dateTime": "2026-05-04T09:15:00Z"},
			}},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/calendar/v3/calendars/primary/events":
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.inserted = in
		out := map[string]any{"id": "evt-1"}
		for k, v := range in {
			out[k] = v
		}
		_ = json.NewEncoder(w).Encode(out)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// StartURL is the consent start endpoint redirects point at.
const StartURL = "https://mail.example.com/auth/start"

// Env is a ServerContext wired to in-memory stores and FakeGoogle.
type Env struct {
	Context *server.ServerContext
	Store   *tokenstore.MemoryStore
	Google  *FakeGoogle
}

// NewEnv returns an Env whose resources are released when t ends.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	env := &Env{Store: tokenstore.NewMemoryStore(nil), Google: &FakeGoogle{}}
	api := httptest.NewServer(http.HandlerFunc(env.Google.serve))
	t.Cleanup(api.Close)

	g, err := gate.New(gate.Config{
		Store:     env.Store,
		Refresher: noRefresh{},
		StartURL:  StartURL,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	env.Context, err = server.NewServerContext(ctx, server.ContextConfig{
		Gate:          g,
		Meetings:      calendar.NewLocalMeetingProvider("https://meet.example.com"),
		ClientOptions: []option.ClientOption{option.WithEndpoint(api.URL + "/")},
	})
	require.NoError(t, err)
	return env
}

type noRefresh struct{}

func (noRefresh) Refresh(context.Context, string) (*token.Bundle, error) {
	return nil, errors.New("refresh not expected")
}

// Session returns a context for a new session without a stored token.
func (e *Env) Session() context.Context {
	return server.WithSessionID(context.Background(), uuid.NewString())
}

// Connect stores a valid token granting caps and returns the session's context.
func (e *Env) Connect(t testing.TB, caps ...google.Capability) context.Context {
	t.Helper()
	sessionID := uuid.NewString()
	require.NoError(t, e.Store.Replace(context.Background(), sessionID, &token.Bundle{
		AccessToken:   "ya29.tool",
		RefreshToken:  "1//tool",
		ExpiresAt:     time.Now().Add(time.Hour),
		GrantedScopes: google.NewScopeCatalog().ScopesFor(caps...),
		TokenType:     token.TypeBearer,
	}))
	return server.WithSessionID(context.Background(), sessionID)
}

// Request builds a tool call request.
func Request(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// Text returns the text of the first content item of result.
func Text(t testing.TB, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "first content item is %T", result.Content[0])
	return text.Text
}
