package instrumentation

import "strings"

// Operation names used as the operation label of Google API and registry metrics.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationDelete = "delete"
	OperationSearch = "search"
	OperationStatus = "status"
	OperationSend   = "send"

	// OperationGenerate is a Gemini generateContent call.
	OperationGenerate = "generate"
)

// routePrefixes are the path prefixes whose last segment is an identifier.
var routePrefixes = []string{
	"/api/servers/",
}

// NormalizePath collapses identifier segments so that the path label of HTTP
// metrics stays bounded.
//
//	NormalizePath("/api/servers/3f2a")  // "/api/servers/{id}"
//	NormalizePath("/auth/start")        // "/auth/start"
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	for _, prefix := range routePrefixes {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + "{id}"
		}
	}
	return path
}
