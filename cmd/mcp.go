package cmd

import (
	"fmt"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailcal/internal/registry"
	"github.com/teemow/mailcal/internal/resources"
	"github.com/teemow/mailcal/internal/server"
	"github.com/teemow/mailcal/internal/tools/calendar_tools"
	"github.com/teemow/mailcal/internal/tools/gmail_tools"
	"github.com/teemow/mailcal/internal/tools/google_tools"
)

// newMCPServer returns an MCP server with every tool and resource registered.
func newMCPServer(sc *server.ServerContext, reg *registry.Registry, baseURL string, readOnly bool) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("mailcal", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	if err := registerAll(mcpSrv, sc, reg, baseURL, readOnly); err != nil {
		return nil, err
	}
	return mcpSrv, nil
}

func registerAll(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, reg *registry.Registry, baseURL string, readOnly bool) error {
	type registration struct {
		name     string
		register func() error
	}

	registrations := []registration{
		{
			name: "Gmail",
			register: func() error {
				return gmail_tools.RegisterGmailTools(mcpSrv, sc, readOnly)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, sc, readOnly)
			},
		},
		{
			name: "Google",
			register: func() error {
				return google_tools.RegisterGoogleTools(mcpSrv, sc, baseURL)
			},
		},
		{
			name: "Resources",
			register: func() error {
				return resources.RegisterResources(mcpSrv, sc, reg)
			},
		},
	}

	for _, r := range registrations {
		if err := r.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", r.name, err)
		}
	}
	return nil
}

// mcpHandler serves mcpSrv over streamable HTTP at /mcp. Tool calls run
// as the session named by the request's session cookie.
func mcpHandler(mcpSrv *mcpserver.MCPServer, sessions *server.SessionManager) http.Handler {
	return mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithHTTPContextFunc(sessions.HTTPContextFunc),
	)
}
