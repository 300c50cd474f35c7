package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookieName holds the opaque session id. The token itself never
	// leaves the server.
	SessionCookieName = "sessionId"
	// ConnectedCookieName is a UI hint readable by scripts.
	ConnectedCookieName = "connected"

	// DefaultSessionMaxAge is the lifetime of both cookies.
	DefaultSessionMaxAge = 30 * 24 * time.Hour
)

// ErrNoSession is returned when a request carries no valid session cookie.
var ErrNoSession = errors.New("no session cookie")

type sessionKey struct{}

// WithSessionID stores the session id in ctx.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionIDFromContext returns the session id stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// SessionManager issues and reads the session cookies.
type SessionManager struct {
	secure bool
	maxAge time.Duration
}

// NewSessionManager returns a SessionManager. secure marks cookies Secure and
// must be set when the server is reached over https.
func NewSessionManager(secure bool) *SessionManager {
	return &SessionManager{secure: secure, maxAge: DefaultSessionMaxAge}
}

// Resolve returns the session id of r. Cookies that are not a uuid are
// ignored.
func (m *SessionManager) Resolve(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrNoSession
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", ErrNoSession
	}
	return c.Value, nil
}

// Ensure returns the session id of r, issuing a new session cookie on w when
// r has none.
func (m *SessionManager) Ensure(w http.ResponseWriter, r *http.Request) string {
	if id, err := m.Resolve(r); err == nil {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// SetConnected writes the public connected flag.
func (m *SessionManager) SetConnected(w http.ResponseWriter, connected bool) {
	value := "false"
	if connected {
		value = "true"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ConnectedCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HTTPContextFunc copies the session id of r into ctx. It is installed on the
// MCP endpoint so tools see the browser session.
func (m *SessionManager) HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	if id, err := m.Resolve(r); err == nil {
		return WithSessionID(ctx, id)
	}
	return ctx
}
