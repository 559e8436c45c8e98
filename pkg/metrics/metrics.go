// Package metrics exposes the Prometheus metrics of the brewery pipeline.
// All metrics are defined in their respective packages via promauto
// to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and documentation for all available
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Stage Metrics (pkg/stage):
//   - brewery_stage_runs_total{stage, status} (Counter): Stage invocations by outcome
//   - brewery_stage_failures_total{stage, class} (Counter): Failures by error class (transport, integrity, internal)
//   - brewery_stage_duration_seconds{stage} (Histogram): Stage duration
//   - brewery_stage_last_success_timestamp_seconds{stage} (Gauge): Unix time of the last non-failed run
//
// Artifact Metrics (pkg/pipeline):
//   - brewery_snapshot_records (Gauge): Records in the last raw snapshot
//   - brewery_converted_columns (Gauge): Columns of the last converted table
//   - brewery_partition_units (Gauge): Units written by the last clean run
//   - brewery_aggregate_groups (Gauge): Groups in the last aggregate
//
// Request Metrics (pkg/client):
//   - brewery_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - brewery_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - brewery_api_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Extraction Metrics (pkg/pagination, pkg/ratelimit):
//   - brewery_pages_fetched_total (Counter): Non-empty pages fetched
//   - brewery_records_fetched_total (Counter): Records fetched
//   - brewery_rate_limit_wait_seconds (Histogram): Time spent waiting for the request limiter
//   - brewery_rate_limit_throttles_total (Counter): Requests that had to wait
//
// Cleaning Metrics (pkg/cleaning):
//   - brewery_clean_rule_affected_total{rule} (Counter): Cells or rows affected per rule
//   - brewery_clean_null_state_rows_total (Counter): Cleaned rows left out of every partition
//
// Ledger Metrics (pkg/runstate):
//   - brewery_runstate_lock_contention_total{stage} (Counter): Runs refused because the stage lock was held
//   - brewery_runstate_errors_total{operation} (Counter): Redis errors by operation
//
// Lookup Cache Metrics (pkg/cache):
//   - brewery_cache_hits_total{state} (Counter): Entries found, fresh or stale
//   - brewery_cache_misses_total (Counter): Lookups with no entry
//   - brewery_cache_not_modified_total (Counter): Stale entries revalidated by 304 Not Modified
//   - brewery_cache_errors_total{operation} (Counter): Redis errors by operation
//
// Schedule Metrics (pkg/schedule):
//   - brewery_schedule_runs_total{outcome} (Counter): Scheduled runs by outcome
//   - brewery_schedule_retries_total{stage} (Counter): Stage retries
//   - brewery_schedule_retry_backoff_seconds (Histogram): Backoff before a retry
//   - brewery_schedule_overlaps_total (Counter): Runs skipped while another was in progress
//
// Example Prometheus Queries:
//
//   # Failed stages in the last day
//   sum by (stage, class) (increase(brewery_stage_failures_total[1d]))
//
//   # Hours since the aggregate last succeeded
//   (time() - brewery_stage_last_success_timestamp_seconds{stage="aggregate"}) / 3600
//
//   # Rows dropped by deduplication per run
//   increase(brewery_clean_rule_affected_total{rule="dedup_id"}[1d])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(brewery_api_request_duration_seconds_bucket[5m]))
