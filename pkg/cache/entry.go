package cache

import (
	"time"
)

// Entry is a cached response body with its validators.
type Entry struct {
	// Data is the response body.
	Data []byte `json:"data"`

	// ETag for If-None-Match.
	ETag string `json:"etag,omitempty"`

	// LastModified for If-Modified-Since.
	LastModified time.Time `json:"last_modified,omitempty"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the body was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry is stale.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until the entry becomes stale.
// Returns 0 if already stale.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Revalidatable reports whether a conditional request can be made for e.
func (e *Entry) Revalidatable() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}
