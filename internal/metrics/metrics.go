// Package metrics exposes Prometheus instruments for broadcasts, reconciliation
// and platform calls.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	broadcastSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_broadcast_sends_total",
			Help: "Total number of broadcast send attempts by category and result.",
		},
		[]string{"category", "result"},
	)
	broadcastRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rosterbot_broadcast_runs_total",
			Help: "Total number of completed broadcast runs.",
		},
	)
	reconcileEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_reconcile_evictions_total",
			Help: "Total number of entities evicted by reconciliation.",
		},
		[]string{"kind"},
	)
	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosterbot_reconcile_duration_seconds",
			Help:    "Reconciliation pass latencies in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)
	gatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_gateway_errors_total",
			Help: "Total number of platform call failures by operation and class.",
		},
		[]string{"op", "class"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_http_requests_total",
			Help: "Total number of ops HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		broadcastSendsTotal,
		broadcastRunsTotal,
		reconcileEvictionsTotal,
		reconcileDuration,
		gatewayErrorsTotal,
		httpRequestsTotal,
	)
}

// ObserveSend records one broadcast send.
func ObserveSend(category string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	broadcastSendsTotal.WithLabelValues(category, result).Inc()
}

// IncBroadcastRun records a completed broadcast run.
func IncBroadcastRun() {
	broadcastRunsTotal.Inc()
}

// AddEvictions records n evicted entities of kind ("chat" or "member").
func AddEvictions(kind string, n int) {
	if n > 0 {
		reconcileEvictionsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveReconcile records the duration of a reconciliation pass.
func ObserveReconcile(kind string, d time.Duration) {
	reconcileDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncGatewayError records a failed platform call.
func IncGatewayError(op, class string) {
	gatewayErrorsTotal.WithLabelValues(op, class).Inc()
}

// ObserveHTTP records one ops HTTP request.
func ObserveHTTP(method, route string, status int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
