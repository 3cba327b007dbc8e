package monitoring

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

const (
	outcomeSuccess  = "success"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

// ExternalAPIMetrics covers calls leaving the process: chain adapters and the Base RPC.
// service is the breaker name, e.g. "btc_adapter" or "base_rpc".
type ExternalAPIMetrics struct {
	callDuration *prometheus.HistogramVec
	calls        *prometheus.CounterVec
	failures     *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewExternalAPIMetrics() *ExternalAPIMetrics {
	return &ExternalAPIMetrics{
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "icy_funding_external_call_duration_seconds",
				Help: "Latency of chain adapter and Base RPC calls",
				// explorer lookups and receipt waits are slow; keep room up to the tx timeout
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
			},
			[]string{"service", "operation", "outcome"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_external_calls_total",
				Help: "Chain adapter and Base RPC calls by outcome (success, error, rejected by an open breaker)",
			},
			[]string{"service", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_external_call_failures_total",
				Help: "Failed external calls by error class",
			},
			[]string{"service", "operation", "error_type"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icy_funding_circuit_breaker_state",
				Help: "Breaker state per service (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
	}
}

func (m *ExternalAPIMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.callDuration,
		m.calls,
		m.failures,
		m.breakerState,
	)
}

// RecordAPICall records one call. A call the breaker refused is counted but not timed.
func (m *ExternalAPIMetrics) RecordAPICall(service, operation string, err error, duration float64) {
	if m == nil {
		return
	}
	o := outcome(err)
	m.calls.WithLabelValues(service, o).Inc()
	if o == outcomeRejected {
		return
	}
	m.callDuration.WithLabelValues(service, operation, o).Observe(duration)
	if err != nil {
		m.failures.WithLabelValues(service, operation, string(classifyError(err))).Inc()
	}
}

func (m *ExternalAPIMetrics) UpdateCircuitBreakerState(service string, state gobreaker.State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(service).Set(float64(state))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return outcomeRejected
	}
	return outcomeError
}
