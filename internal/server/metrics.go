package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lensmap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lensmap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Bake metrics
	bakeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lensmap_bake_requests_total",
			Help: "Total number of bake requests",
		},
		[]string{"status"},
	)

	bakeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lensmap_bake_duration_seconds",
			Help:    "Displacement map bake duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	bakeTexelsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lensmap_bake_texels_total",
			Help: "Total number of displacement texels baked",
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lensmap_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lensmap_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)
)
