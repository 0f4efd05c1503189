// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsAcquiredTotal       *prometheus.CounterVec
	recordsInsertedTotal       prometheus.Counter
	descriptionsTotal          *prometheus.CounterVec
	fetchRequestsTotal         *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	enrichWaitSeconds          prometheus.Histogram
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		recordsAcquiredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobingest_records_acquired_total",
				Help: "Raw listing records acquired, labeled by the source tier that produced them.",
			},
			[]string{"tier"},
		)

		recordsInsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobingest_records_inserted_total",
				Help: "Listing rows newly inserted into the store.",
			},
		)

		descriptionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobingest_descriptions_total",
				Help: "Descriptions written during enrichment, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobingest_fetch_requests_total",
				Help: "Outbound fetches, labeled by site and status code.",
			},
			[]string{"site", "code"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobingest_runs_total",
				Help: "Pipeline runs, labeled by phase and status.",
			},
			[]string{"phase", "status"},
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

		enrichWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobingest_enrich_wait_seconds",
				Help:    "Time spent waiting on the enrichment pacing limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobingest_rate_limit_delay_seconds",
				Help:    "Time outbound requests spent waiting on the per-host limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"site"},
		)
	})
}

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

// ObserveAcquired records how many raw records a tier produced.
func ObserveAcquired(tier string, n int) {
	Init()
	if n > 0 {
		recordsAcquiredTotal.WithLabelValues(tier).Add(float64(n))
	}
}

// ObserveInserted records newly inserted rows.
func ObserveInserted(n int) {
	Init()
	if n > 0 {
		recordsInsertedTotal.Add(float64(n))
	}
}

// ObserveDescription increments the description counter for an outcome.
func ObserveDescription(outcome string) {
	Init()
	descriptionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one outbound request. A zero code means the request
// never produced a response.
func ObserveFetch(site string, code int) {
	Init()
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	fetchRequestsTotal.WithLabelValues(SanitizeSite(site), label).Inc()
}

// ObserveRun increments the run counter.
func ObserveRun(phase, status string) {
	Init()
	runsTotal.WithLabelValues(phase, status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveEnrichWait records the duration of a pacing wait.
func ObserveEnrichWait(d time.Duration) {
	Init()
	enrichWaitSeconds.Observe(d.Seconds())
}

// ObserveRateLimitDelay records time spent waiting on a host's token bucket.
func ObserveRateLimitDelay(site string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(d.Seconds())
}
