// Package metrics exposes Prometheus collectors for the harvester and its HTTP facade.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	doubanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "douban_requests_total",
			Help: "Total number of outbound requests, labeled by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	doubanBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "douban_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	doubanFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "douban_fetch_duration_seconds",
			Help:    "Histogram of outbound fetch latencies, labeled by operation.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"operation"},
	)

	doubanCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "douban_cache_lookups_total",
			Help: "Total number of result cache lookups, labeled by operation and result.",
		},
		[]string{"operation", "result"},
	)

	doubanRateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "douban_rate_limit_delay_seconds",
			Help:    "Histogram of admission waits, labeled by policy.",
			Buckets: []float64{0.05, 0.2, 0.5, 1, 3, 5, 10, 30, 60},
		},
		[]string{"policy"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records the outcome, size, and latency of one outbound request.
func ObserveFetch(operation, site, outcome string, bytesFetched int, duration time.Duration) {
	doubanRequestsTotal.WithLabelValues(operation, outcome).Inc()
	doubanFetchDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
	if bytesFetched > 0 {
		doubanBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveCacheLookup counts a result cache hit or miss.
func ObserveCacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	doubanCacheLookupsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveRateLimitDelay records the duration of an admission wait.
func ObserveRateLimitDelay(policy string, duration time.Duration) {
	doubanRateLimitDelaySeconds.WithLabelValues(policy).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
