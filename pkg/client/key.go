package client

import (
	"net/url"
	"strings"
)

// RequestKey identifies a logical request for deduplication.
type RequestKey struct {
	// Method is the upper-case HTTP method
	Method string

	// Endpoint is the path relative to the base URL (e.g., "/groups/grp_1")
	Endpoint string

	// Query holds the query parameters
	Query url.Values
}

// String generates a deterministic key string.
// Format: METHOD:endpoint?canonical-query
//
// Query keys are sorted; values keep their order within a key.
//
// Example:
//
//	GET:/groups/grp_1/members?limit=50&offset=0
func (k RequestKey) String() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(k.Method))
	b.WriteByte(':')
	b.WriteString(k.Endpoint)
	if len(k.Query) > 0 {
		b.WriteByte('?')
		b.WriteString(k.Query.Encode())
	}
	return b.String()
}
