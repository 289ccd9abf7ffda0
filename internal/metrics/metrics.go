// Package metrics exposes Prometheus collectors for the catalogue scraper.
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

// Detail outcome labels.
const (
	DetailOK          = "ok"
	DetailFetchFailed = "fetch_failed"
	DetailParseFailed = "parse_failed"
	DetailPanic       = "panic"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       prometheus.Histogram
	pagesTotal                 *prometheus.CounterVec
	recordsTotal               prometheus.Counter
	cardsSkippedTotal          prometheus.Counter
	detailsTotal               *prometheus.CounterVec
	detailInFlight             prometheus.Gauge
	exportRows                 prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogue_fetches_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogue_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalogue_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogue_pages_total",
				Help: "Total number of listing pages visited, labeled by status.",
			},
			[]string{"status"},
		)

		recordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalogue_records_total",
				Help: "Total number of summary records extracted from listing pages.",
			},
		)

		cardsSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalogue_cards_skipped_total",
				Help: "Total number of item cards skipped because a field was missing.",
			},
		)

		detailsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogue_details_total",
				Help: "Total number of detail pages processed, labeled by outcome.",
			},
			[]string{"status"},
		)

		detailInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalogue_detail_in_flight",
				Help: "Number of detail fetches currently in flight.",
			},
		)

		exportRows = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalogue_export_rows",
				Help: "Number of rows written by the most recent export.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalogue_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveFetch records one page fetch.
func ObserveFetch(rawURL string, ok bool, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	status := "ok"
	if !ok {
		status = "error"
	}
	fetchesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObservePage records one listing page visit and the cards found on it.
func ObservePage(ok bool, records, skipped int) {
	Init()
	status := "ok"
	if !ok {
		status = "fetch_failed"
	}
	pagesTotal.WithLabelValues(status).Inc()
	recordsTotal.Add(float64(records))
	cardsSkippedTotal.Add(float64(skipped))
}

// ObserveDetail records the outcome of one detail page.
func ObserveDetail(status string) {
	Init()
	detailsTotal.WithLabelValues(status).Inc()
}

// IncDetailInFlight increments the in-flight detail gauge.
func IncDetailInFlight() {
	Init()
	detailInFlight.Inc()
}

// DecDetailInFlight decrements the in-flight detail gauge.
func DecDetailInFlight() {
	Init()
	detailInFlight.Dec()
}

// SetExportRows records the size of the latest export.
func SetExportRows(n int) {
	Init()
	exportRows.Set(float64(n))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
