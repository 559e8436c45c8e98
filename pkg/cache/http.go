package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is the freshness lifetime when the response carries no
// Cache-Control max-age and no Expires header.
const DefaultTTL = 5 * time.Minute

// NewEntry builds an entry from a 200 response body and its headers.
func NewEntry(body []byte, header http.Header, now time.Time) *Entry {
	entry := &Entry{
		Data:     body,
		ETag:     header.Get("ETag"),
		Expires:  ExpiresFrom(header, now),
		CachedAt: now,
	}
	if lm := header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}
	return entry
}

// ExpiresFrom returns when a response received at now becomes stale.
// Cache-Control no-cache/no-store and max-age take precedence over Expires.
func ExpiresFrom(header http.Header, now time.Time) time.Time {
	for _, directive := range strings.Split(header.Get("Cache-Control"), ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		switch {
		case directive == "no-cache", directive == "no-store":
			return now
		case strings.HasPrefix(directive, "max-age="):
			if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil && secs >= 0 {
				return now.Add(time.Duration(secs) * time.Second)
			}
		}
	}

	if exp := header.Get("Expires"); exp != "" {
		t, err := http.ParseTime(exp)
		if err != nil || t.Before(now) {
			return now
		}
		return t
	}
	return now.Add(DefaultTTL)
}

// AddConditionalHeaders adds If-None-Match (ETag) or If-Modified-Since
// to req when entry carries a validator.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if req == nil || !entry.Revalidatable() {
		return
	}

	// Prefer ETag over Last-Modified (more accurate)
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}
