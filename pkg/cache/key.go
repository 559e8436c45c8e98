package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces cache keys in Redis.
const KeyPrefix = "brewery:cache:"

// Key identifies a cached API response.
type Key struct {
	// Endpoint is the request path, e.g. "/breweries/5494".
	Endpoint string

	// Query holds the query parameters.
	Query url.Values
}

// String generates a deterministic key.
// Format: brewery:cache:endpoint[:query1=val1:query2=val2]
//
// Example:
//
//	brewery:cache:breweries/5494
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteString(strings.Trim(k.Endpoint, "/"))

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(k.Query[name], ","))
	}
	return b.String()
}
