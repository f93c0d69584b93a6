// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for recommendation requests.
const (
	OutcomeOK          = "ok"
	OutcomeNoSelection = "no_selection"
	OutcomeNotFound    = "not_found"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
)

// Result labels for poster fetches.
const (
	PosterFound       = "found"
	PosterMissing     = "missing"
	PosterError       = "error"
	PosterCircuitOpen = "circuit_open"
	PosterDisabled    = "disabled"
)

var (
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruiji_recommend_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ruiji_recommend_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruiji_cache_lookups_total",
			Help: "Cache lookups by cache name and result (hit, miss)",
		},
		[]string{"cache", "result"},
	)

	PosterFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruiji_poster_fetches_total",
			Help: "Upstream poster fetches by result",
		},
		[]string{"result"},
	)

	PosterFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ruiji_poster_fetch_duration_seconds",
			Help:    "Duration of upstream poster fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	CorpusReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruiji_corpus_reloads_total",
			Help: "Corpus reload attempts by status (success, error)",
		},
		[]string{"status"},
	)

	CorpusSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruiji_corpus_items",
			Help: "Number of items in the active corpus snapshot",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruiji_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordRecommend records one recommendation request.
func RecordRecommend(outcome string, duration time.Duration) {
	RecommendRequests.WithLabelValues(outcome).Inc()
	RecommendDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss on the named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordPosterFetch records one upstream poster fetch. Zero durations are not observed.
func RecordPosterFetch(result string, duration time.Duration) {
	PosterFetches.WithLabelValues(result).Inc()
	if duration > 0 {
		PosterFetchDuration.Observe(duration.Seconds())
	}
}

// RecordCorpusReload records a reload attempt and, on success, the new corpus size.
func RecordCorpusReload(size int, err error) {
	if err != nil {
		CorpusReloads.WithLabelValues("error").Inc()
		return
	}
	CorpusReloads.WithLabelValues("success").Inc()
	CorpusSize.Set(float64(size))
}
