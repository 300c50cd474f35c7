package gmail

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Email is a Gmail message reduced to what the dashboard shows.
type Email struct {
	ID             string   `json:"id"`
	ThreadID       string   `json:"threadId"`
	Snippet        string   `json:"snippet"`
	Subject        string   `json:"subject"`
	From           string   `json:"from"`
	To             string   `json:"to"`
	Date           string   `json:"date"`
	Body           string   `json:"body"`
	HTML           string   `json:"html"`
	Labels         []string `json:"labels"`
	HasAttachments bool     `json:"hasAttachments"`
}

// SearchQuery are the search form fields.
type SearchQuery struct {
	Query          string     `json:"query"`
	After          *time.Time `json:"after,omitempty"`
	Before         *time.Time `json:"before,omitempty"`
	HasAttachments bool       `json:"hasAttachments"`
}

// String renders q in Gmail search syntax.
func (q SearchQuery) String() string {
	var parts []string
	if s := strings.TrimSpace(q.Query); s != "" {
		parts = append(parts, s)
	}
	if q.After != nil {
		parts = append(parts, "after:"+q.After.Format("2006/01/02"))
	}
	if q.Before != nil {
		parts = append(parts, "before:"+q.Before.Format("2006/01/02"))
	}
	if q.HasAttachments {
		parts = append(parts, "has:attachment")
	}
	return strings.Join(parts, " ")
}

// OutgoingMessage is an email to be sent.
type OutgoingMessage struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	IsHTML  bool     `json:"isHtml"`
}

// Validate checks the required fields.
func (m *OutgoingMessage) Validate() error {
	switch {
	case len(m.To) == 0:
		return errors.New("at least one recipient is required")
	case m.Subject == "":
		return errors.New("subject is required")
	case m.Body == "":
		return errors.New("body is required")
	}
	for _, addr := range append(append(append([]string{}, m.To...), m.Cc...), m.Bcc...) {
		if strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("invalid recipient %q", addr)
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("subject must be a single line")
	}
	return nil
}

// Raw returns the RFC 2822 message, base64url encoded as the Gmail API expects.
func (m *OutgoingMessage) Raw() (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	if len(m.Cc) > 0 {
		b.WriteString("Cc: " + strings.Join(m.Cc, ", ") + "\r\n")
	}
	if len(m.Bcc) > 0 {
		b.WriteString("Bcc: " + strings.Join(m.Bcc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + encodeHeader(m.Subject) + "\r\n")
	if m.IsHTML {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n\r\n")
	b.WriteString(m.Body)

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

// encodeHeader applies RFC 2047 encoding to non-ASCII header values.
func encodeHeader(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
