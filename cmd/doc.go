// Package cmd implements the command-line interface for mailcal.
//
// This package provides the following commands:
//   - serve: Start the HTTP server with the OAuth endpoints, the JSON API and the MCP endpoint
//   - scopes: Print the capability to OAuth scope catalog
//   - auth-url: Print a Google consent URL for a set of capabilities
//   - docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
package cmd
