package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions     prometheus.Gauge
	sessionTransitions *prometheus.CounterVec
	controlOps         *prometheus.CounterVec
	pauseWait          *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolTruncatedTotal    *prometheus.CounterVec
	chunksStreamedTotal   prometheus.Counter

	providerCallTotal    *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "codelet_active_sessions",
					Help: "Current number of sessions held by the registry.",
				},
			),
			sessionTransitions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codelet_session_transitions_total",
					Help: "Session status transitions by target status.",
				},
				[]string{"to"},
			),
			controlOps: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codelet_control_operations_total",
					Help: "Control operations by operation and result.",
				},
				[]string{"op", "result"},
			),
			pauseWait: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "codelet_pause_wait_seconds",
					Help:    "Time tools spent waiting in a pause by pause kind.",
					Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
				},
				[]string{"kind"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codelet_tool_executions_total",
					Help: "Tool executions by tool and outcome.",
				},
				[]string{"tool", "outcome"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "codelet_tool_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolTruncatedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codelet_tool_truncated_total",
					Help: "Tool results truncated before reaching the model.",
				},
				[]string{"tool"},
			),
			chunksStreamedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "codelet_chunks_streamed_total",
					Help: "Output chunks delivered to observers.",
				},
			),
			providerCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codelet_provider_calls_total",
					Help: "Model provider calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "codelet_provider_call_duration_seconds",
					Help:    "Model provider call duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionTransitions,
			m.controlOps,
			m.pauseWait,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolTruncatedTotal,
			m.chunksStreamedTotal,
			m.providerCallTotal,
			m.providerCallDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionTransition(to string) {
	getMetrics().sessionTransitions.WithLabelValues(to).Inc()
}

func RecordControlOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	getMetrics().controlOps.WithLabelValues(op, result).Inc()
}

func RecordPauseWait(kind string, d time.Duration) {
	getMetrics().pauseWait.WithLabelValues(kind).Observe(d.Seconds())
}

func RecordToolExecution(tool string, duration time.Duration, outcome string, truncated bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, outcome).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if truncated {
		m.toolTruncatedTotal.WithLabelValues(tool).Inc()
	}
}

func RecordChunk() {
	getMetrics().chunksStreamedTotal.Inc()
}

func RecordProviderCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.providerCallTotal.WithLabelValues(provider, status).Inc()
	m.providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
