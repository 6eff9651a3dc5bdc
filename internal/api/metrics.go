package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	requestTotal         *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	cacheResult          *prometheus.CounterVec
	fetchDuration        prometheus.Histogram
	transformDuration    prometheus.Histogram
	pixelsProcessedTotal prometheus.Counter
	bytesSavedTotal      prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagekit_api_requests_total",
			Help: "Total HTTP requests handled by the gateway.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagekit_api_request_duration_seconds",
			Help:    "Gateway request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagekit_cache_results_total",
			Help: "Total cache lookups by outcome (hit or miss).",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imagekit_fetch_duration_seconds",
			Help:    "Source fetch latency for cache-miss transforms.",
			Buckets: prometheus.DefBuckets,
		}),
		transformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imagekit_transform_duration_seconds",
			Help:    "Decode/resize/encode latency for cache-miss transforms.",
			Buckets: prometheus.DefBuckets,
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imagekit_pixels_processed_total",
			Help: "Total output pixels produced across all successful transforms.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imagekit_bytes_saved_total",
			Help: "Total bytes saved (source size minus encoded size) across all successful transforms.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.cacheResult,
		m.fetchDuration,
		m.transformDuration,
		m.pixelsProcessedTotal,
		m.bytesSavedTotal,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/img"):
		return "/img"
	case strings.HasPrefix(path, "/sign"):
		return "/sign"
	case strings.HasPrefix(path, "/upload"):
		return "/upload"
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	case strings.HasPrefix(path, "/stats/cache"):
		return "/stats/cache"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
