package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// HTTPMetrics holds the request collectors.
type HTTPMetrics struct {
	logger         *zap.Logger
	requestsTotal  *prometheus.CounterVec
	requestDur     *prometheus.HistogramVec
	responseSize   *prometheus.HistogramVec
	activeRequests prometheus.Gauge
}

// NewHTTPMetrics registers the HTTP collectors with reg.
//
// Metrics:
//   - signald_http_requests_total{method,endpoint,status}
//   - signald_http_request_duration_seconds{method,endpoint,status}
//   - signald_http_response_size_bytes{method,endpoint,status}
//   - signald_http_active_requests
func NewHTTPMetrics(reg prometheus.Registerer, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	labels := []string{"method", "endpoint", "status"}

	return &HTTPMetrics{
		logger: logger,
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signald_http_requests_total",
			Help: "Total HTTP requests by method, route, and status code",
		}, labels),
		requestDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signald_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, labels),
		responseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signald_http_response_size_bytes",
			Help:    "HTTP response body size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		}, labels),
		activeRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "signald_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		}),
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
// Handler errors are rendered here so the recorded status is the one sent.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.activeRequests.Inc()
			defer m.activeRequests.Dec()

			if err := next(c); err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			endpoint := normalizePath(c.Path())
			method := c.Request().Method

			m.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
			m.requestDur.WithLabelValues(method, endpoint, status).Observe(time.Since(start).Seconds())
			m.responseSize.WithLabelValues(method, endpoint, status).Observe(float64(c.Response().Size))
			return nil
		}
	}
}

// normalizePath keeps label cardinality bounded. Routes are fixed, so the
// matched route pattern is used as is; unmatched requests share one label.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
