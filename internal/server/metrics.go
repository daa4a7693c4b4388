package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stratad",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route, method, and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratad",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, by route, method, and status.",
	}, []string{"route", "method", "status"})

	documentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratad",
		Subsystem: "http",
		Name:      "documents_ingested_total",
		Help:      "Documents ingested through the upload endpoint.",
	}, []string{"organization"})

	chunksIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratad",
		Subsystem: "http",
		Name:      "document_chunks_ingested_total",
		Help:      "Chunks produced by documents ingested through the upload endpoint.",
	}, []string{"organization"})
)

func observeRequest(route, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	requestDuration.WithLabelValues(route, method, code).Observe(duration.Seconds())
	requestsTotal.WithLabelValues(route, method, code).Inc()
}

func observeIngest(organization string, chunks int) {
	documentsIngested.WithLabelValues(organization).Inc()
	chunksIngested.WithLabelValues(organization).Add(float64(chunks))
}
