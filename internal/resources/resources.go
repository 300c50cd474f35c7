package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/registry"
	"github.com/teemow/mailcal/internal/server"
)

// Resource URIs.
const (
	ServersURI     = "mailcal://servers"
	SessionAuthURI = "mailcal://session/auth"
)

// SessionAuth is the content of SessionAuthURI.
type SessionAuth struct {
	Connected    bool                        `json:"connected"`
	State        gate.State                  `json:"state"`
	Missing      []google.Capability         `json:"missing,omitempty"`
	Capabilities map[google.Capability]bool `json:"capabilities"`
}

// RegisterResources registers the resources with the MCP server.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext, reg *registry.Registry) error {
	serversResource := mcp.NewResource(
		ServersURI,
		"Registered MCP servers",
		mcp.WithResourceDescription("MCP servers registered in mailcal, oldest first"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(serversResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleServers(ctx, request, reg)
	})

	authResource := mcp.NewResource(
		SessionAuthURI,
		"Google authorization",
		mcp.WithResourceDescription("Whether the current session has connected a Google account and which capabilities it granted"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(authResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSessionAuth(ctx, request, sc)
	})

	return nil
}

func handleServers(ctx context.Context, request mcp.ReadResourceRequest, reg *registry.Registry) ([]mcp.ResourceContents, error) {
	servers, err := reg.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return jsonContents(request.Params.URI, servers)
}

func handleSessionAuth(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	var st gate.Status
	if sessionID, ok := server.SessionIDFromContext(ctx); ok {
		st, err := sc.Gate().Inspect(ctx, sessionID, google.AllCapabilities())
		if err != nil {
			return nil, fmt.Errorf("failed to read authorization status: %w", err)
		}
		st = st
	} else {
		st = gate.Evaluate(google.NewScopeCatalog(), nil, google.AllCapabilities(), sc.Now())
	}

	return jsonContents(request.Params.URI, SessionAuth{
		Connected:    st.Connected,
		State:        st.State,
		Missing:      st.Missing,
		Capabilities: st.Capabilities,
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
