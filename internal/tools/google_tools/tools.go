package google_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/server"
	"github.com/teemow/mailcal/internal/tools/common"
)

// AuthStatus is the result of auth_status.
type AuthStatus struct {
	Connected    bool                        `json:"connected"`
	State        gate.State                  `json:"state"`
	Capabilities map[google.Capability]bool `json:"capabilities"`
}

// RegisterGoogleTools registers the authorization tools. baseURL is the
// public URL of the web app serving /auth/start.
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.ServerContext, baseURL string) error {
	statusTool := mcp.NewTool("auth_status",
		mcp.WithDescription("Show whether a Google account is connected and which capabilities are granted"),
	)
	s.AddTool(statusTool, common.InstrumentedToolHandler("auth_status", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAuthStatus(ctx, request, sc)
		}))

	connectTool := mcp.NewTool("auth_connect_url",
		mcp.WithDescription("Get the URL to connect a Google account or grant more capabilities"),
		mcp.WithString("capabilities",
			mcp.Description("Comma-separated capabilities: gmail.read, gmail.send, calendar.read, calendar.write (default: gmail.read)"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Show the consent screen even if access was granted before"),
		),
	)
	s.AddTool(connectTool, common.InstrumentedToolHandler("auth_connect_url", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleConnectURL(ctx, request, baseURL)
		}))

	return nil
}

func handleAuthStatus(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	status := AuthStatus{State: gate.StateUnauthenticated, Capabilities: make(map[google.Capability]bool)}
	for _, c := range google.AllCapabilities() {
		status.Capabilities[c] = false
	}

	if sessionID, ok := common.SessionID(ctx); ok {
		st, err := sc.Gate().Inspect(ctx, sessionID, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read authorization status: %v", err)), nil
		}
		status.Connected = st.Connected
		status.State = st.State
		status.Capabilities = st.Capabilities
	}
	return common.JSONResult(status)
}

func handleConnectURL(_ context.Context, request mcp.CallToolRequest, baseURL string) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	caps, err := google.ParseCapabilities(common.StringArg(args, "capabilities"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(caps) == 0 {
		caps = []google.Capability{google.GmailRead}
	}

	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	connectURL := gate.StartURL(strings.TrimSuffix(baseURL, "/")+gate.DefaultStartURL, caps, common.BoolArg(args, "force"))

	return mcp.NewToolResultText(fmt.Sprintf(`To grant %s:

1. Open this URL in the browser you use for mailcal:
   %s

2. Sign in with your Google account and approve the requested access
3. Retry the tool call`, strings.Join(names, ", "), connectURL)), nil
}
