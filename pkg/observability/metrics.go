// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the taskchat service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ReasoningBuckets defines histogram buckets suited for reasoning backend
// latencies, ranging from 100ms to 120s.
var ReasoningBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchat_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskchat_request_duration_seconds",
			Help:    "Request duration",
			Buckets: ReasoningBuckets,
		},
		[]string{"method", "route"},
	)

	// TurnsTotal counts processed turns by outcome: the error kind, or "ok".
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchat_turns_total",
			Help: "Processed conversation turns",
		},
		[]string{"outcome"},
	)

	// TurnToolRounds records how many tool-call rounds each committed turn used.
	TurnToolRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskchat_turn_tool_rounds",
			Help:    "Tool-call rounds per committed turn",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// ReasoningRequestsTotal counts calls to the reasoning backend.
	ReasoningRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchat_reasoning_requests_total",
			Help: "Reasoning backend requests",
		},
		[]string{"status"},
	)

	// ReasoningLatency records reasoning backend latency in seconds.
	ReasoningLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskchat_reasoning_latency_seconds",
			Help:    "Reasoning backend latency",
			Buckets: ReasoningBuckets,
		},
	)

	// LeaseRejectionsTotal counts turns rejected because the conversation
	// was busy.
	LeaseRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskchat_lease_rejections_total",
			Help: "Turns rejected while the conversation lease was held",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchat_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TurnsTotal,
		TurnToolRounds,
		ReasoningRequestsTotal,
		ReasoningLatency,
		LeaseRejectionsTotal,
		RateLimitRejectedTotal,
	)
}
