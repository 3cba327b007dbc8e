package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// routes gin could not match are folded into one label value
const unmatchedRoute = "unmatched"

type HTTPMetrics struct {
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	inFlight        prometheus.Gauge
	rateLimited     *prometheus.CounterVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "icy_funding_http_request_duration_seconds",
				Help: "HTTP request latency by route",
				// check-status may call a chain explorer inline
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"method", "route", "code"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "icy_funding_http_requests_in_flight",
				Help: "HTTP requests currently being served",
			},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_http_rate_limited_total",
				Help: "Requests rejected by the per-IP rate limiter",
			},
			[]string{"route"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_api_operations_total",
				Help: "Funding and admin API operations by subject and outcome",
			},
			[]string{"operation", "subject", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "icy_funding_api_operation_duration_seconds",
				Help:    "Time spent in the controller per API operation",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation", "outcome"},
		),
	}
}

func (m *HTTPMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.requestDuration,
		m.requests,
		m.inFlight,
		m.rateLimited,
		m.operations,
		m.operationDuration,
	)
}

func (m *HTTPMetrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = unmatchedRoute
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

func (m *HTTPMetrics) recordOperation(operation, subject, outcome string, duration float64) {
	m.operations.WithLabelValues(operation, subject, outcome).Inc()
	if duration > 0 {
		m.operationDuration.WithLabelValues(operation, outcome).Observe(duration)
	}
}

// HTTPMetricsMiddleware labels requests by gin route template, never by raw path.
func HTTPMetricsMiddleware(metrics *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.inFlight.Inc()
		defer metrics.inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		code := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		metrics.requestDuration.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
		metrics.requests.WithLabelValues(method, route, code).Inc()
	}
}

// BusinessMetricsRecorder is what handlers record through. A nil recorder drops everything.
type BusinessMetricsRecorder struct {
	metrics *HTTPMetrics
}

func NewBusinessMetricsRecorder(metrics *HTTPMetrics) *BusinessMetricsRecorder {
	return &BusinessMetricsRecorder{
		metrics: metrics,
	}
}

func (r *BusinessMetricsRecorder) RecordDepositRequest(chain, outcome string, duration float64) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.recordOperation("request_deposit", chain, outcome, duration)
}

// RecordStatusCheck records a check-status call; outcome is the funding status or "error".
func (r *BusinessMetricsRecorder) RecordStatusCheck(source, outcome string, duration float64) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.recordOperation("check_status", source, outcome, duration)
}

func (r *BusinessMetricsRecorder) RecordAdminOperation(operation, outcome string, duration float64) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.recordOperation("admin", operation, outcome, duration)
}
