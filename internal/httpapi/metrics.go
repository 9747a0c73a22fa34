package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "medmodeld"

var (
	requestLabels = []string{"route", "method", "status"}

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern, method and status",
	}, requestLabels)

	// Buckets reach half an hour because synchronous installs hold the request open.
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 120, 600, 1800},
	}, requestLabels)

	httpResponseBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Response body size in bytes",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"route"})

	httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Requests currently being served, by top-level path segment",
	}, []string{"group"})

	httpFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "failures_total",
		Help:      "Enveloped failure responses by status and error code",
	}, []string{"status", "code"})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpResponseBytes, httpInflight, httpFailuresTotal)
}

// responseMeter records the first status written and the body size.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
	sent   bool
}

func (m *responseMeter) WriteHeader(code int) {
	if !m.sent {
		m.status = code
		m.sent = true
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	m.sent = true
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

func (m *responseMeter) Flush() {
	if f, ok := m.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (m *responseMeter) Unwrap() http.ResponseWriter { return m.ResponseWriter }

// MetricsMiddleware records Prometheus request metrics. Labels use the chi
// route pattern so model names never become label values.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		group := pathGroup(r.URL.Path)
		httpInflight.WithLabelValues(group).Inc()
		defer httpInflight.WithLabelValues(group).Dec()

		m := &responseMeter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(m, r)

		route := routeLabel(r)
		labels := []string{route, r.Method, strconv.Itoa(m.status)}
		httpRequestsTotal.WithLabelValues(labels...).Inc()
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		httpResponseBytes.WithLabelValues(route).Observe(float64(m.bytes))
	})
}

// routeLabel is the matched chi pattern, or "unmatched" for 404/405 paths.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// pathGroup returns the first segment of p, e.g. "/local" for "/local/models/x".
func pathGroup(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return "/" + p
}

func recordFailure(status int, code string) {
	if code == "" {
		code = codeForStatus(status)
	}
	httpFailuresTotal.WithLabelValues(strconv.Itoa(status), code).Inc()
}
