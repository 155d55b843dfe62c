package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request instrumentation. "result" is the HTTP status code, or "transport"
// when no response was received.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homeboard",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Outbound API requests by operation and result.",
	}, []string{"op", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homeboard",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Outbound API request latency by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

func observeRequest(op, result string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(op, result).Inc()
	requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
