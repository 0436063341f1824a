// Package metrics exposes Prometheus collectors for the crawler service.
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
	fetchTotal                    *prometheus.CounterVec
	fetchErrorsTotal              *prometheus.CounterVec
	fallbackTotal                 prometheus.Counter
	candidateLinksTotal           *prometheus.CounterVec
	crawlsTotal                   *prometheus.CounterVec
	crawlDurationSeconds          prometheus.Histogram
	classifierCallsTotal          *prometheus.CounterVec
	partnersTotal                 *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerActiveWorkers          prometheus.Gauge
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_total",
				Help: "Page fetch attempts, labeled by source (direct-fetch, render-fetch) and outcome.",
			},
			[]string{"source", "outcome"},
		)

		fetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_errors_total",
				Help: "Failed fetch attempts, labeled by source and error kind.",
			},
			[]string{"source", "kind"},
		)

		fallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_render_fallback_total",
				Help: "Direct fetch failures that fell back to a browser render.",
			},
		)

		candidateLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_candidate_links_total",
				Help: "Selected candidate sub-pages, labeled by keyword tier.",
			},
			[]string{"tier"},
		)

		crawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_crawls_total",
				Help: "Completed crawls, labeled by status (ok, degraded, empty).",
			},
			[]string{"status"},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_crawl_duration_seconds",
				Help:    "Histogram of end-to-end crawl durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		classifierCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifier_calls_total",
				Help: "Classifier requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		partnersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_partners_total",
				Help: "Business partners processed, labeled by status.",
			},
			[]string{"status"},
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

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently analyzing a partner.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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
	Init()
	return promhttp.Handler()
}

// ObserveFetch counts one fetch attempt.
func ObserveFetch(source, outcome string) {
	Init()
	fetchTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetchError counts a failed attempt by error kind.
func ObserveFetchError(source, kind string) {
	Init()
	fetchErrorsTotal.WithLabelValues(source, kind).Inc()
}

// ObserveFallback counts a switch from direct fetch to render.
func ObserveFallback() {
	Init()
	fallbackTotal.Inc()
}

// ObserveCandidate counts a selected link.
func ObserveCandidate(tier int) {
	Init()
	candidateLinksTotal.WithLabelValues(strconv.Itoa(tier)).Inc()
}

// ObserveCrawl records a finished crawl.
func ObserveCrawl(status string, duration time.Duration) {
	Init()
	crawlsTotal.WithLabelValues(status).Inc()
	crawlDurationSeconds.Observe(duration.Seconds())
}

// ObserveClassifierCall counts a classifier request.
func ObserveClassifierCall(outcome string) {
	Init()
	classifierCallsTotal.WithLabelValues(outcome).Inc()
}

// ObservePartner counts an analyzed partner.
func ObservePartner(status string) {
	Init()
	partnersTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
