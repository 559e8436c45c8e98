// Package cache keeps single-brewery API responses in Redis and revalidates
// them with conditional requests.
//
// Only lookups by id are cached. The extract stage always walks the full
// listing so every snapshot reflects the API at the time of the run.
//
// An entry is fresh until its Expires time, taken from Cache-Control
// max-age or the Expires header (DefaultTTL when neither is present). A
// stale entry stays in Redis for the retain window of its Manager so that
// the next lookup can send If-None-Match or If-Modified-Since and reuse the
// stored body on 304 Not Modified.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.Key{Endpoint: "/breweries/5494"}
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch without conditional headers
//	case entry.IsExpired():
//		cache.AddConditionalHeaders(req, entry)
//	default:
//		// serve entry.Data
//	}
//
// # Metrics
//
//   - brewery_cache_hits_total{state} - Entries found, fresh or stale
//   - brewery_cache_misses_total - Lookups with no entry
//   - brewery_cache_not_modified_total - Stale entries revalidated by a 304
//   - brewery_cache_errors_total{operation} - Redis errors by operation
package cache
