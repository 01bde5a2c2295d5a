package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panoblur_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panoblur_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// requestsTotal counts detect and blur calls by outcome.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panoblur_api_requests_total",
			Help: "Total number of detect and blur requests",
		},
		[]string{"type", "status"},
	)

	objectsPerImage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panoblur_objects_per_image",
			Help:    "Number of objects returned per request",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panoblur_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panoblur_upload_size_bytes",
			Help:    "Size of uploaded panoramas in bytes",
			Buckets: []float64{100 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024, 25 * 1024 * 1024, 50 * 1024 * 1024, 100 * 1024 * 1024},
		},
	)
)
