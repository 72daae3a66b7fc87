// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_api_requests_total",
			Help: "Total number of local API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tillmirror_api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tillmirror_api_active_requests",
			Help: "Current number of active local API requests",
		},
	)

	// Remote Backend Metrics
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_remote_requests_total",
			Help: "Total number of backend requests by method and result",
		},
		[]string{"method", "result"}, // result: "success", "remote_error", "transport_error"
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tillmirror_remote_request_duration_seconds",
			Help:    "Backend request duration in seconds, retries included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	RemoteRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillmirror_remote_rate_limited_total",
			Help: "Total number of HTTP 429 responses from the backend",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tillmirror_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tillmirror_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Offline Engine Metrics
	FetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_fetch_outcomes_total",
			Help: "Reads by collection and how they were served",
		},
		[]string{"collection", "outcome"}, // outcome: "online", "offline", "fallback", "miss", "error"
	)

	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_writes_total",
			Help: "Writes by entity type, operation and outcome",
		},
		[]string{"entity_type", "op", "outcome"}, // outcome: "online", "queued", "error"
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_sync_records_total",
			Help: "Pending mutations replayed by entity type and result",
		},
		[]string{"entity_type", "result"}, // result: "synced", "failed"
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tillmirror_sync_duration_seconds",
			Help:    "Duration of one replay pass in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"entity_type"},
	)

	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillmirror_evictions_total",
			Help: "Cache evictions by scope",
		},
		[]string{"scope"}, // scope: "outlet", "all"
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tillmirror_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillmirror_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)
)

// RecordAPIRequest records a local API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRemoteRequest records one backend call.
func RecordRemoteRequest(method, result string, duration time.Duration) {
	RemoteRequestsTotal.WithLabelValues(method, result).Inc()
	RemoteRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordFetch records how a read was served.
func RecordFetch(collection, outcome string) {
	FetchOutcomes.WithLabelValues(collection, outcome).Inc()
}

// RecordWrite records how a mutation was handled.
func RecordWrite(entityType, op, outcome string) {
	WritesTotal.WithLabelValues(entityType, op, outcome).Inc()
}

// RecordSyncPass records the result of one replay pass.
func RecordSyncPass(entityType string, synced, failed int, duration time.Duration) {
	if synced > 0 {
		SyncRecords.WithLabelValues(entityType, "synced").Add(float64(synced))
	}
	if failed > 0 {
		SyncRecords.WithLabelValues(entityType, "failed").Add(float64(failed))
	}
	SyncDuration.WithLabelValues(entityType).Observe(duration.Seconds())
}

// RecordEviction records a cache eviction.
func RecordEviction(scope string) {
	Evictions.WithLabelValues(scope).Inc()
}
