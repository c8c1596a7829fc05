// Package metrics exposes the Prometheus metrics of the client. The metrics
// themselves are defined in their own packages (client, pagination,
// ratelimit, publish) and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package-level metric is added to.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics:
//
// Gateway (pkg/client):
//   - rickmorty_requests_total{status} (Counter): requests by HTTP status or "network_error"
//   - rickmorty_request_duration_seconds (Histogram): request duration
//   - rickmorty_errors_total{kind} (Counter): failures by kind (malformed_url, transport, decode)
//
// Pacing (pkg/ratelimit):
//   - rickmorty_rate_limit_waits_total (Counter): requests delayed by the limiter
//   - rickmorty_rate_limit_wait_seconds (Histogram): time spent waiting for a token
//
// Pagination (pkg/pagination):
//   - rickmorty_pagination_loads_total{op,result} (Counter): op is first|next,
//     result is success|error|noop|stale
//   - rickmorty_pagination_characters (Gauge): characters accumulated
//
// Publishing (pkg/publish):
//   - rickmorty_publish_total{result} (Counter): snapshot writes to Redis
//
// Example queries:
//
//	# Gateway error rate by kind
//	sum by (kind) (rate(rickmorty_errors_total[5m]))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(rickmorty_request_duration_seconds_bucket[5m]))
