package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks entries found by freshness (fresh, stale)
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewery_cache_hits_total",
			Help: "Total lookup cache hits by freshness",
		},
		[]string{"state"},
	)

	// cacheMisses tracks lookups with no entry
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brewery_cache_misses_total",
			Help: "Total lookup cache misses",
		},
	)

	// notModified tracks stale entries revalidated by a 304
	notModified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brewery_cache_not_modified_total",
			Help: "Total stale cache entries revalidated by 304 Not Modified",
		},
	)

	// cacheErrors tracks Redis errors by operation
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewery_cache_errors_total",
			Help: "Total lookup cache errors by operation",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
