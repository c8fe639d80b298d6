// Package metrics exposes Prometheus collectors for the link enricher.
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
	classificationsTotal   *prometheus.CounterVec
	retriesTotal           *prometheus.CounterVec
	retryDelaySeconds      prometheus.Histogram
	candidatesTotal        *prometheus.CounterVec
	recordsTotal           *prometheus.CounterVec
	fetchesTotal           *prometheus.CounterVec
	activeRecords          prometheus.Gauge
	rateLimitDelaysSeconds *prometheus.HistogramVec
	strategyCacheHitsTotal *prometheus.CounterVec
	batchDurationSeconds   prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		classificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_classifications_total",
				Help: "Total number of URLs classified, labeled by link type.",
			},
			[]string{"link_type"},
		)

		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_retries_total",
				Help: "Total number of retry attempts scheduled, labeled by operation.",
			},
			[]string{"operation"},
		)

		retryDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enricher_retry_delay_seconds",
				Help:    "Histogram of computed retry backoff delays.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_candidates_total",
				Help: "Total number of candidate links validated, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_records_total",
				Help: "Total number of records processed, labeled by final state.",
			},
			[]string{"state"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_fetches_total",
				Help: "Total number of page fetches, labeled by site and status class.",
			},
			[]string{"site", "status_class"},
		)

		activeRecords = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enricher_active_records",
				Help: "Number of records currently in the pipeline.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enricher_rate_limit_delays_seconds",
				Help:    "Histogram of per-host politeness wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		strategyCacheHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_strategy_cache_lookups_total",
				Help: "Strategy cache lookups, labeled by result (hit or miss).",
			},
			[]string{"result"},
		)

		batchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enricher_batch_duration_seconds",
				Help:    "Histogram of ProcessBatch wall-clock durations.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
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

// StatusClass groups HTTP status codes; zero means the request never got a response.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 100 && code < 600:
		return strconv.Itoa(code/100) + "xx"
	default:
		return "other"
	}
}

// ObserveClassification counts one classifier decision.
func ObserveClassification(linkType string) {
	if classificationsTotal == nil {
		return
	}
	classificationsTotal.WithLabelValues(linkType).Inc()
}

// ObserveRetry counts one scheduled retry and its delay.
func ObserveRetry(operation string, delay time.Duration) {
	if retriesTotal == nil {
		return
	}
	retriesTotal.WithLabelValues(operation).Inc()
	retryDelaySeconds.Observe(delay.Seconds())
}

// ObserveCandidate counts one candidate validation outcome.
func ObserveCandidate(source, outcome string) {
	if candidatesTotal == nil {
		return
	}
	candidatesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveRecord counts one record reaching a final state.
func ObserveRecord(state string) {
	if recordsTotal == nil {
		return
	}
	recordsTotal.WithLabelValues(state).Inc()
}

// ObserveFetch counts one page fetch.
func ObserveFetch(site string, statusCode int) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(SanitizeSite(site), StatusClass(statusCode)).Inc()
}

// IncActiveRecords increments the active records gauge.
func IncActiveRecords() {
	if activeRecords == nil {
		return
	}
	activeRecords.Inc()
}

// DecActiveRecords decrements the active records gauge.
func DecActiveRecords() {
	if activeRecords == nil {
		return
	}
	activeRecords.Dec()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	if rateLimitDelaysSeconds == nil {
		return
	}
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveStrategyLookup counts a strategy cache hit or miss.
func ObserveStrategyLookup(hit bool) {
	if strategyCacheHitsTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	strategyCacheHitsTotal.WithLabelValues(result).Inc()
}

// ObserveBatch records how long one batch took.
func ObserveBatch(duration time.Duration) {
	if batchDurationSeconds == nil {
		return
	}
	batchDurationSeconds.Observe(duration.Seconds())
}
