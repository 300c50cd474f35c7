// Package registry stores the MCP server configurations a user registered
// from the dashboard.
//
// A Registry validates and normalizes new records before handing them to a
// Store. Two stores are provided: MemoryStore for single-instance and test
// deployments, and PostgresStore for the durable deployment.
package registry
