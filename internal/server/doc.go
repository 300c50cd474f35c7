// Package server provides the HTTP front end of mailcal.
//
// # Key Components
//
// ServerContext holds the services shared by the HTTP handlers and the MCP
// tools: the access gate, the summarizer and the meeting provider. Gmail and
// Calendar clients are built per call from the session's access token, so
// nothing token-bearing is cached.
//
// Server routes the endpoints:
//   - /auth/start, /auth/callback: the consent redirect and the code exchange
//   - /auth/refresh, /auth/status, /auth/logout: session maintenance
//   - /api/gmail/*, /api/calendar/*: data endpoints behind the access gate
//   - /api/servers: the MCP server registry
//   - /mcp: the MCP streamable HTTP endpoint, when configured
//   - /healthz, /readyz: probes
//
// SessionManager issues the opaque session cookie. The browser never sees a
// Google token.
//
// # Consent responses
//
// A data endpoint that cannot get a usable token answers 401 with a
// ConsentResponse carrying a /auth/start link. Only /auth/start issues the
// CSRF state and redirects to Google. Store or token endpoint outages
// answer 503 with a retryable TransientResponse.
package server
