// Package metrics documents the crawler's Prometheus metrics and pushes them
// to a Pushgateway at the end of a run.
//
// All metrics are defined in their respective packages (client, ratelimit,
// pagination, enrich, crawl, sink) via promauto and registered with the
// default registry.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Gatherer collects the metrics pushed by Push.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - helix_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - helix_request_duration_seconds{endpoint} (Histogram): Attempt duration by endpoint
//   - helix_errors_total{class} (Counter): Failed attempts by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - helix_retries_total{error_class} (Counter): Retries by error class
//   - helix_retry_backoff_seconds{error_class} (Histogram): Wait before a retry
//   - helix_retry_exhausted_total{error_class} (Counter): Calls that used up all attempts
//
// Rate Limit Metrics (pkg/ratelimit):
//   - helix_ratelimit_points_remaining (Gauge): Last observed Ratelimit-Remaining
//   - helix_ratelimit_waits_total (Counter): Waits for an exhausted bucket to reset
//
// Pagination Metrics (pkg/pagination):
//   - helix_pagination_pages_total (Counter): Non-empty pages yielded
//   - helix_pagination_items_total (Counter): Items yielded
//
// Crawl Metrics (internal/enrich, internal/crawl, internal/sink):
//   - helix_enrichment_lookups_total{field, outcome} (Counter): found, absent or failed lookups
//   - helix_crawl_keywords_total{outcome} (Counter): Keywords that completed or failed
//   - helix_crawl_channels_total{outcome} (Counter): Channels collected, skipped or failed
//   - helix_sink_records_total{sink} (Counter): Records written per sink
//   - helix_sink_errors_total{sink} (Counter): Sink write failures
//
// Example Prometheus Queries:
//
//   # Enrichment failure ratio per field
//   sum by (field) (helix_enrichment_lookups_total{outcome="failed"}) /
//   sum by (field) (helix_enrichment_lookups_total)
//
//   # Calls that degraded to an empty result
//   sum(helix_retry_exhausted_total)
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(helix_request_duration_seconds_bucket[5m]))

// Push sends everything in Gatherer to the Pushgateway at url, replacing the
// metrics previously pushed under job and grouping.
func Push(ctx context.Context, url, job string, grouping map[string]string) error {
	return PushFrom(ctx, Gatherer, url, job, grouping)
}

// PushFrom is Push with an explicit gatherer.
func PushFrom(ctx context.Context, g prometheus.Gatherer, url, job string, grouping map[string]string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		return fmt.Errorf("push job is required")
	}

	pusher := push.New(url, job).Gatherer(g)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
