package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/server"
)

// noSessionMessage is returned when the MCP request carries no session cookie.
const noSessionMessage = "No browser session. Open the mailcal web app and connect a Google account first."

// SessionID returns the session the tool call belongs to.
func SessionID(ctx context.Context) (string, bool) {
	return server.SessionIDFromContext(ctx)
}

// WithAccess runs fn with an access token for caps. It returns nil when fn
// ran and succeeded. Otherwise it returns the tool error to hand back to the
// client: the consent URL when the user has to grant access, a retry hint
// for transient failures, or the API error.
func WithAccess(ctx context.Context, sc *server.ServerContext, caps []google.Capability, fn func(ctx context.Context, accessToken string) error) *mcp.CallToolResult {
	sessionID, ok := SessionID(ctx)
	if !ok {
		return mcp.NewToolResultError(noSessionMessage)
	}

	d, err := sc.Call(ctx, sessionID, caps, fn)
	switch {
	case gate.IsTransient(err):
		sc.Logger().Warn("transient authorization failure", logging.Session(sessionID), logging.Err(err))
		return mcp.NewToolResultError("Google or the token store is temporarily unavailable. Retry in a moment.")
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("Google API request failed: %v", err))
	case !d.Ready():
		return ConsentResult(d, caps)
	}
	return nil
}

// ConsentResult renders a redirect decision as a tool error carrying the URL.
func ConsentResult(d gate.Decision, caps []google.Capability) *mcp.CallToolResult {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return mcp.NewToolResultError(fmt.Sprintf(`Google authorization required (%s) for: %s

Open this URL in your browser and grant access, then retry:
%s`, d.Reason, strings.Join(names, ", "), d.RedirectURL))
}

// JSONResult returns v as indented JSON text.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// StringArg returns the string argument key, or "".
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// BoolArg returns the boolean argument key, or false.
func BoolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// IntArg returns the numeric argument key as an int, or 0.
func IntArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// ListArg returns the list argument key. It accepts a comma-separated string
// or an array of strings and drops empty items.
func ListArg(args map[string]any, key string) []string {
	var items []string
	switch v := args[key].(type) {
	case string:
		items = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	case []string:
		items = v
	}

	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
