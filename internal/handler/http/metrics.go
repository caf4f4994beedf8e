package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notification_gateway",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification_gateway",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"path", "method", "status"})

	openStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "notification_gateway",
		Name:      "http_open_streams",
		Help:      "Streaming requests currently in flight.",
	}, []string{"path"})
)

// MetricsMiddleware records RED metrics. Streams are counted on completion like any
// other request, and tracked while open by the open_streams gauge.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		path := routePattern(r)
		httpDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(path, r.Method, status).Inc()
	})
}

// StreamGauge wraps a long-lived handler.
func StreamGauge(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := openStreams.WithLabelValues(path)
		g.Inc()
		defer g.Dec()
		next(w, r)
	}
}

// routePattern prefers the chi pattern (/group/{group_name}) over the raw path to keep
// label cardinality bounded; bearer tokens in paths never reach a label.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return "unmatched"
}
