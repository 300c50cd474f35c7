// Package common provides shared utilities for MCP tool implementations:
// the session lookup, the access gate wrapper that turns consent redirects
// into tool errors, argument parsing and instrumentation.
package common
