package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/teemow/mailcal/internal/calendar"
	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/gmail"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/summarize"
)

const maxRequestBody = 1 << 20

// SearchRequest is the body of POST /api/gmail/search. Dates are YYYY-MM-DD
// or RFC 3339.
type SearchRequest struct {
	Query          string `json:"query"`
	After          string `json:"after,omitempty"`
	Before         string `json:"before,omitempty"`
	HasAttachments bool   `json:"hasAttachments"`
}

func (req SearchRequest) toQuery() (gmail.SearchQuery, error) {
	q := gmail.SearchQuery{Query: req.Query, HasAttachments: req.HasAttachments}
	var err error
	if q.After, err = parseDate("after", req.After); err != nil {
		return q, err
	}
	if q.Before, err = parseDate("before", req.Before); err != nil {
		return q, err
	}
	return q, nil
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD)", field)
}

// CalendarStatusResponse is the body of /api/calendar/status.
type CalendarStatusResponse struct {
	Connected   bool   `json:"connected"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return false
	}
	return true
}

// withAccess runs fn with the session's access token for caps. When that is
// not possible it writes the consent, transient or upstream error response
// and returns false.
func (s *Server) withAccess(w http.ResponseWriter, r *http.Request, caps []google.Capability, fn func(ctx context.Context, accessToken string) error) bool {
	sessionID := s.sessions.Ensure(w, r)
	d, err := s.sc.Call(r.Context(), sessionID, caps, fn)
	switch {
	case gate.IsTransient(err):
		s.writeGateError(w, err)
		return false
	case err != nil:
		s.logger.Error("google api request failed",
			logging.Session(sessionID),
			logging.Capabilities(caps),
			logging.Err(err))
		writeError(w, http.StatusBadGateway, "upstream_error", "Google API request failed")
		return false
	case !d.Ready():
		if d.Reason != gate.ReasonNeedsScope {
			s.sessions.SetConnected(w, false)
		}
		writeJSON(w, http.StatusUnauthorized, ConsentResponse{
			Error:       "consent_required",
			RedirectURL: d.RedirectURL,
			Status:      string(d.Reason),
		})
		return false
	}
	return true
}

func (s *Server) handleGmailRecent(w http.ResponseWriter, r *http.Request) {
	var emails []gmail.Email
	ok := s.withAccess(w, r, []google.Capability{google.GmailRead}, func(ctx context.Context, tok string) error {
		client, err := s.sc.GmailClient(ctx, tok)
		if err != nil {
			return err
		}
		emails, err = client.Recent(ctx)
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]any{"emails": nonNil(emails)})
	}
}

func (s *Server) handleGmailSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	query, err := req.toQuery()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var emails []gmail.Email
	ok := s.withAccess(w, r, []google.Capability{google.GmailRead}, func(ctx context.Context, tok string) error {
		client, err := s.sc.GmailClient(ctx, tok)
		if err != nil {
			return err
		}
		emails, err = client.Search(ctx, query)
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]any{"emails": nonNil(emails)})
	}
}

func (s *Server) handleGmailSend(w http.ResponseWriter, r *http.Request) {
	var msg gmail.OutgoingMessage
	if !decodeJSON(w, r, &msg) {
		return
	}
	if err := msg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var id string
	ok := s.withAccess(w, r, []google.Capability{google.GmailSend}, func(ctx context.Context, tok string) error {
		client, err := s.sc.GmailClient(ctx, tok)
		if err != nil {
			return err
		}
		id, err = client.Send(ctx, &msg)
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
	}
}

func (s *Server) handleGmailSummarize(w http.ResponseWriter, r *http.Request) {
	var email summarize.Email
	if !decodeJSON(w, r, &email) {
		return
	}
	summary, err := s.sc.Summarizer().Summarize(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "summarize_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	var events []calendar.Event
	ok := s.withAccess(w, r, []google.Capability{google.CalendarRead}, func(ctx context.Context, tok string) error {
		client, err := s.sc.CalendarClient(ctx, tok)
		if err != nil {
			return err
		}
		events, err = client.Upcoming(ctx, s.sc.Now())
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]any{"events": nonNil(events)})
	}
}

func (s *Server) handleCalendarCreate(w http.ResponseWriter, r *http.Request) {
	var input calendar.EventInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := input.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var event *calendar.Event
	ok := s.withAccess(w, r, []google.Capability{google.CalendarWrite}, func(ctx context.Context, tok string) error {
		client, err := s.sc.CalendarClient(ctx, tok)
		if err != nil {
			return err
		}
		event, err = client.CreateEvent(ctx, input)
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": event})
	}
}

func (s *Server) handleCalendarStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessions.Ensure(w, r)
	caps := []google.Capability{google.CalendarRead}

	var connected bool
	d, err := s.sc.Call(r.Context(), sessionID, caps, func(ctx context.Context, tok string) error {
		client, err := s.sc.CalendarClient(ctx, tok)
		if err != nil {
			return err
		}
		connected, err = client.Status(ctx)
		return err
	})
	switch {
	case gate.IsTransient(err):
		s.writeGateError(w, err)
	case err != nil:
		s.logger.Warn("calendar status check failed", logging.Session(sessionID), logging.Err(err))
		writeJSON(w, http.StatusOK, CalendarStatusResponse{Message: "Calendar API access failed"})
	case !d.Ready():
		writeJSON(w, http.StatusOK, CalendarStatusResponse{
			Message:     calendarStatusMessage(d.Reason),
			RedirectURL: d.RedirectURL,
		})
	case !connected:
		writeJSON(w, http.StatusOK, CalendarStatusResponse{Message: "Calendar API access failed"})
	default:
		writeJSON(w, http.StatusOK, CalendarStatusResponse{Connected: true, Message: "Calendar access granted"})
	}
}

func calendarStatusMessage(reason gate.Reason) string {
	switch reason {
	case gate.ReasonNeedsAuth:
		return "No tokens found"
	case gate.ReasonNeedsScope:
		return "Calendar access not granted"
	default:
		return "Calendar API access failed"
	}
}

func (s *Server) handleCalendarMeeting(w http.ResponseWriter, r *http.Request) {
	meetings := s.sc.Meetings()
	if meetings == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "no meeting provider is configured")
		return
	}
	var req calendar.MeetingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	meeting, err := meetings.CreateMeeting(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("failed to create meeting", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "could not create meeting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "meeting": meeting})
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
