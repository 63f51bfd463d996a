// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the relay:
// - Channel session lifecycle (state, transitions, reconnects)
// - Publish and receive throughput
// - Marker registry size
// - Open-data permit search (requests, cache, circuit breaker)
// - WebSocket fan-out clients

var (
	// Channel session metrics
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "georelay_session_state",
			Help: "Current channel session state (0=disconnected, 1=connecting, 2=connected)",
		},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "georelay_session_transitions_total",
			Help: "Total number of channel session state transitions",
		},
		[]string{"from", "to"},
	)

	SessionReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "georelay_session_reconnect_attempts_total",
			Help: "Total number of automatic reconnect attempts",
		},
	)

	// Publish metrics
	Publishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "georelay_publishes_total",
			Help: "Total number of publish attempts by result",
		},
		[]string{"result"}, // "ok", "not_connected", "encoding", "transport", "location"
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "georelay_publish_duration_seconds",
			Help:    "Duration of successful publishes in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Subscriber metrics
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "georelay_messages_received_total",
			Help: "Total number of inbound messages accepted into the marker registry",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "georelay_messages_dropped_total",
			Help: "Total number of inbound messages dropped",
		},
		[]string{"reason"}, // "encoding", "queue_full"
	)

	Markers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "georelay_markers",
			Help: "Current number of markers held in the registry",
		},
	)

	// Permit search metrics
	PermitRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "georelay_permit_requests_total",
			Help: "Total number of open-data permit searches by result",
		},
		[]string{"result"}, // "ok", "error", "rate_limited", "circuit_open"
	)

	PermitCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "georelay_permit_cache_hits_total",
			Help: "Total number of permit searches served from cache",
		},
	)

	PermitCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "georelay_permit_cache_misses_total",
			Help: "Total number of permit searches that missed the cache",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "georelay_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "georelay_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "georelay_websocket_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "georelay_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "georelay_http_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "route"},
	)

	WebSocketDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "georelay_websocket_dropped_total",
			Help: "Total number of WebSocket messages dropped because a buffer was full",
		},
		[]string{"type"},
	)
)

// RecordSessionTransition records a state change. state is the numeric
// value of the new state.
func RecordSessionTransition(from, to string, state int) {
	SessionTransitions.WithLabelValues(from, to).Inc()
	SessionState.Set(float64(state))
}

// RecordReconnectAttempt counts one automatic reconnect attempt.
func RecordReconnectAttempt() {
	SessionReconnectAttempts.Inc()
}

// RecordPublish records a publish attempt. duration is only observed for
// successful publishes.
func RecordPublish(result string, duration time.Duration) {
	Publishes.WithLabelValues(result).Inc()
	if result == "ok" {
		PublishDuration.Observe(duration.Seconds())
	}
}

// RecordMessageReceived counts an accepted message and updates the marker gauge.
func RecordMessageReceived(markers int) {
	MessagesReceived.Inc()
	Markers.Set(float64(markers))
}

// RecordMessageDropped counts a dropped inbound message.
func RecordMessageDropped(reason string) {
	MessagesDropped.WithLabelValues(reason).Inc()
}

// RecordPermitRequest counts a permit search by result.
func RecordPermitRequest(result string) {
	PermitRequests.WithLabelValues(result).Inc()
}

// RecordPermitCache counts a permit cache lookup.
func RecordPermitCache(hit bool) {
	if hit {
		PermitCacheHits.Inc()
		return
	}
	PermitCacheMisses.Inc()
}

// RecordCircuitBreakerTransition updates the breaker gauges.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetWebSocketClients updates the connected client gauge.
func SetWebSocketClients(n int) {
	WebSocketClients.Set(float64(n))
}

// RecordWebSocketDrop counts a message the hub could not deliver.
func RecordWebSocketDrop(messageType string) {
	WebSocketDropped.WithLabelValues(messageType).Inc()
}
