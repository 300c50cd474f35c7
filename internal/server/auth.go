package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/oauthstate"
	"github.com/teemow/mailcal/internal/token"
)

// Callback error codes appended to the application URL as ?error=.
const (
	callbackAuthRejected  = "auth_rejected"
	callbackNoCode        = "no_code"
	callbackInvalidState  = "invalid_state"
	callbackTokenExchange = "token_exchange"
)

// URLBuilder builds Google consent URLs.
type URLBuilder interface {
	Build(caps []google.Capability, forceConsent bool, state string) string
}

// Exchanger trades an authorization code for a token bundle.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*token.Bundle, error)
}

// Revoker revokes a token at Google.
type Revoker interface {
	Revoke(ctx context.Context, tok string) error
}

// RefreshResponse is the body of /auth/refresh.
type RefreshResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
}

// StatusResponse is the body of /auth/status.
type StatusResponse struct {
	Connected    bool                         `json:"connected"`
	Capabilities map[google.Capability]bool `json:"capabilities"`
}

var reasonMessages = map[gate.Reason]string{
	gate.ReasonNeedsAuth:       "No Google account is connected",
	gate.ReasonInvalidToken:    "The stored token is no longer valid",
	gate.ReasonNeedsScope:      "Additional permissions are required",
	gate.ReasonRefreshRejected: "The session expired, please sign in again",
}

// capabilitiesParam reads the capabilities query parameter, falling back to
// gmail.read.
func capabilitiesParam(r *http.Request) ([]google.Capability, error) {
	caps, err := google.ParseCapabilities(r.URL.Query().Get("capabilities"))
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		caps = []google.Capability{google.GmailRead}
	}
	return caps, nil
}

// handleAuthStart is the only place a CSRF state is issued. Redirect
// decisions from the gate point here.
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	caps, err := capabilitiesParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	sessionID := s.sessions.Ensure(w, r)
	state, err := s.states.Issue(r.Context(), sessionID, caps)
	if err != nil {
		s.logger.Error("failed to issue oauth state", logging.Session(sessionID), logging.Err(err))
		writeError(w, http.StatusServiceUnavailable, "server_error", "could not start authorization")
		return
	}

	s.logger.Debug("redirecting to consent screen",
		logging.Session(sessionID),
		logging.Capabilities(caps),
		"force", force)
	http.Redirect(w, r, s.urls.Build(caps, force, state), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		s.logger.Info("consent was declined", "oauth_error", e)
		s.redirectApp(w, r, "error", callbackAuthRejected)
		return
	}
	code := q.Get("code")
	if code == "" {
		s.redirectApp(w, r, "error", callbackNoCode)
		return
	}

	sessionID, err := s.sessions.Resolve(r)
	if err != nil {
		s.logger.Warn("callback without session cookie")
		s.redirectApp(w, r, "error", callbackInvalidState)
		return
	}
	entry, err := s.states.Consume(ctx, q.Get("state"), sessionID)
	if err != nil {
		if !errors.Is(err, oauthstate.ErrInvalidState) {
			s.logger.Error("failed to consume oauth state", logging.Session(sessionID), logging.Err(err))
		}
		s.redirectApp(w, r, "error", callbackInvalidState)
		return
	}

	bundle, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("token exchange failed", logging.Session(sessionID), logging.Err(err))
		s.audit.LogAuthEvent(ctx, instrumentation.AuthEventExchangeFailed, sessionID, logging.Err(err))
		s.redirectApp(w, r, "error", callbackTokenExchange)
		return
	}
	if err := s.store.Replace(ctx, sessionID, bundle); err != nil {
		s.logger.Error("failed to store token", logging.Session(sessionID), logging.Err(err))
		s.redirectApp(w, r, "error", callbackTokenExchange)
		return
	}

	s.audit.LogAuthEvent(ctx, instrumentation.AuthEventConnected, sessionID, logging.Capabilities(entry.Capabilities))
	s.sessions.SetConnected(w, true)
	s.redirectApp(w, r, "success", "connected")
}

func (s *Server) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	caps, err := capabilitiesParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sessionID := s.sessions.Ensure(w, r)
	d, err := s.sc.Gate().Ensure(r.Context(), sessionID, caps)
	if err != nil {
		s.writeGateError(w, err)
		return
	}
	if !d.Ready() {
		if d.Reason != gate.ReasonNeedsScope {
			s.sessions.SetConnected(w, false)
		}
		writeJSON(w, http.StatusOK, RefreshResponse{
			RedirectURL: d.RedirectURL,
			Status:      string(d.Reason),
			Message:     reasonMessages[d.Reason],
		})
		return
	}
	s.sessions.SetConnected(w, true)
	writeJSON(w, http.StatusOK, RefreshResponse{Success: true})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.sessions.Resolve(r)
	if err != nil {
		writeJSON(w, http.StatusOK, StatusResponse{Capabilities: emptyCapabilities()})
		return
	}
	st, err := s.sc.Gate().Inspect(r.Context(), sessionID, nil)
	if err != nil {
		s.writeGateError(w, err)
		return
	}
	s.sessions.SetConnected(w, st.Connected)
	writeJSON(w, http.StatusOK, StatusResponse{Connected: st.Connected, Capabilities: st.Capabilities})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sessionID, err := s.sessions.Resolve(r); err == nil {
		if bundle, err := s.store.Load(ctx, sessionID); err == nil {
			s.revoke(ctx, sessionID, bundle)
		}
		if err := s.store.Delete(ctx, sessionID); err != nil {
			s.logger.Error("failed to delete token", logging.Session(sessionID), logging.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, TransientResponse{
				Status:    "transient",
				Retryable: true,
				Message:   "could not remove the stored token",
			})
			return
		}
		s.audit.LogAuthEvent(ctx, instrumentation.AuthEventLoggedOut, sessionID)
	}
	s.sessions.SetConnected(w, false)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// revoke tells Google to drop the grant. Failure does not block logout.
func (s *Server) revoke(ctx context.Context, sessionID string, bundle *token.Bundle) {
	if s.revoker == nil {
		return
	}
	tok := bundle.RefreshToken
	if tok == "" {
		tok = bundle.AccessToken
	}
	if tok == "" {
		return
	}
	if err := s.revoker.Revoke(ctx, tok); err != nil {
		s.logger.Warn("token revocation failed", logging.Session(sessionID), logging.Err(err))
	}
}

func (s *Server) redirectApp(w http.ResponseWriter, r *http.Request, key, value string) {
	http.Redirect(w, r, s.appURL+"/?"+url.Values{key: {value}}.Encode(), http.StatusFound)
}

// writeGateError writes the response for an error returned by the gate.
func (s *Server) writeGateError(w http.ResponseWriter, err error) {
	if gate.IsTransient(err) {
		s.logger.Warn("transient authorization failure", logging.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, TransientResponse{
			Status:    "transient",
			Retryable: true,
			Message:   "Google or the token store is temporarily unavailable",
		})
		return
	}
	s.logger.Error("authorization failed", logging.Err(err))
	writeError(w, http.StatusInternalServerError, "server_error", "authorization failed")
}

func emptyCapabilities() map[google.Capability]bool {
	out := make(map[google.Capability]bool)
	for _, c := range google.AllCapabilities() {
		out[c] = false
	}
	return out
}
