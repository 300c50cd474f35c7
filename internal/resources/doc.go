// Package resources provides MCP resources: read-only data MCP clients can
// fetch without calling a tool.
//
//   - mailcal://servers: the registered MCP servers
//   - mailcal://session/auth: the authorization state of the calling session
package resources
