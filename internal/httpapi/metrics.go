package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerebro",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cerebro",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cerebro",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	accessDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerebro",
			Subsystem: "http",
			Name:      "access_denied_total",
			Help:      "Requests rejected by authentication, tier or rate limit",
		},
		[]string{"reason"},
	)

	routeQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cerebro",
			Subsystem: "route",
			Name:      "query_duration_seconds",
			Help:      "Warehouse query latency of generated routes",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "outcome"},
	)

	routeRowsReturned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerebro",
			Subsystem: "route",
			Name:      "rows_returned_total",
			Help:      "Rows served by generated routes",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, accessDeniedTotal,
		routeQueryDuration, routeRowsReturned)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus. The path label is
// read after the handler ran, when chi has resolved the full route pattern
// including mounted generation routers.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		httpInflight.Inc()
		defer httpInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		path := routePatternOrPath(r)
		if sr.status == http.StatusNotFound && path == r.URL.Path {
			path = "unmatched"
		}
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementAccessDenied is called when a request is rejected with 401, 403 or 429.
func IncrementAccessDenied(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	accessDeniedTotal.WithLabelValues(reason).Inc()
}

// observeRouteQuery records one warehouse round trip of a generated route.
func observeRouteQuery(model string, rows int, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	routeQueryDuration.WithLabelValues(model, outcome).Observe(took.Seconds())
	if err == nil {
		routeRowsReturned.WithLabelValues(model).Add(float64(rows))
	}
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
