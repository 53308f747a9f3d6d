// Package metrics provides Prometheus metrics for the card catalog service.
// Scrape these at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upstream Provider Metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_provider_requests_total",
			Help: "Upstream provider requests by endpoint and outcome",
		},
		[]string{"provider", "endpoint", "outcome"}, // outcome: "ok", "error", "timeout"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_provider_request_duration_seconds",
			Help:    "Upstream provider request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 12},
		},
		[]string{"provider", "endpoint"},
	)

	// Fallback Cascade Metrics
	CascadeStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cascade_steps_total",
			Help: "Fallback cascade step outcomes per operation",
		},
		[]string{"operation", "step", "outcome"}, // outcome: "accepted", "rejected", "error"
	)

	// Catalog Cache Metrics
	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Catalog index cache hits",
		},
	)

	CatalogCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Catalog index cache misses (expired or empty slot)",
		},
	)

	CatalogBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_build_duration_seconds",
			Help:    "Time taken to build the aggregated catalog index",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_index_size",
			Help: "Number of entries in the most recently built catalog index",
		},
	)

	DetailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_detail_cache_hits_total",
			Help: "Card detail memoization hits",
		},
	)

	DetailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_detail_cache_misses_total",
			Help: "Card detail memoization misses",
		},
	)
)
