// Package google_tools provides MCP tools for the Google authorization of
// the calling session.
//
//   - auth_status: whether a Google account is connected and which
//     capabilities it granted
//   - auth_connect_url: the URL that starts the consent flow for a set of
//     capabilities
//
// The consent itself happens in the browser. The tools never see a token.
package google_tools
