package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when no server has the requested id.
var ErrNotFound = errors.New("server not found")

// Transport is how an MCP server is reached.
type Transport string

// Supported transports.
const (
	TransportStdio Transport = "stdio"
	TransportSSE   Transport = "sse"
)

// Server is a registered MCP server.
type Server struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Transport Transport `json:"transport"`
	Command   string    `json:"command,omitempty"`
	Args      []string  `json:"args,omitempty"`
	URL       string    `json:"url,omitempty"`
	SessionID string    `json:"sessionId"`
	LastUsed  time.Time `json:"lastUsed"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewServer is the user supplied part of a Server.
type NewServer struct {
	Name      string    `json:"name"`
	Transport Transport `json:"transport"`
	Command   string    `json:"command,omitempty"`
	Args      []string  `json:"args,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// ValidationError reports an invalid NewServer field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks n and drops the fields that do not apply to its transport.
func (n *NewServer) Validate() error {
	n.Name = strings.TrimSpace(n.Name)
	if n.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}

	switch n.Transport {
	case TransportStdio:
		n.URL = ""
		if strings.TrimSpace(n.Command) == "" {
			return &ValidationError{Field: "command", Reason: "is required for stdio"}
		}
	case TransportSSE:
		n.Command = ""
		n.Args = nil
		u, err := url.Parse(n.URL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "url", Reason: "must be an absolute http(s) URL"}
		}
	default:
		return &ValidationError{Field: "transport", Reason: fmt.Sprintf("must be %q or %q", TransportStdio, TransportSSE)}
	}
	return nil
}
