// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package metrics registers the Prometheus collectors for every stage of the
// threat pipeline. Collectors are created with promauto against the default
// registry and exposed by the API at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream consumer

	StreamState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_connection_state",
			Help: "Threat stream state (0=closed, 1=connecting, 2=reconnecting, 3=open)",
		},
	)

	StreamConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_connect_attempts_total",
			Help: "Dial attempts against the threat stream",
		},
		[]string{"result"}, // success, failure
	)

	StreamMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_messages_total",
			Help: "Messages read from the threat stream",
		},
		[]string{"result"}, // accepted, dropped
	)

	StreamDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_decode_errors_total",
			Help: "Stream messages dropped because they failed strict decoding",
		},
		[]string{"reason"}, // syntax, type, validation
	)

	StreamTransportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_transport_errors_total",
			Help: "Read, write and dial errors on the threat stream",
		},
		[]string{"op"},
	)

	// Geolocation

	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_lookups_total",
			Help: "Source IP resolutions by outcome",
		},
		[]string{"outcome"}, // default, cache_hit, resolved, fallback
	)

	GeoLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geo_lookup_duration_seconds",
			Help:    "Latency of external geolocation lookups",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	GeoLookupErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_lookup_errors_total",
			Help: "Failed external geolocation lookups by reason",
		},
		[]string{"reason"}, // timeout, status, decode, coordinates, breaker_open, rate_limited, transport
	)

	GeoInflightShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geo_lookups_shared_total",
			Help: "Resolutions that joined an in-flight lookup for the same IP",
		},
	)

	GeoCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geo_cache_entries",
			Help: "Coordinates currently held in the geolocation cache",
		},
	)

	GeoCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geo_cache_evictions_total",
			Help: "Coordinates evicted from the geolocation cache at capacity",
		},
	)

	GeoStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_store_errors_total",
			Help: "Persistent coordinate store failures",
		},
		[]string{"op"},
	)

	// Buffer and pipeline

	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threat_buffer_size",
			Help: "Threats currently held in the display buffer",
		},
	)

	BufferEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threat_buffer_evictions_total",
			Help: "Threats dropped from the buffer to make room for newer ones",
		},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_handle_duration_seconds",
			Help:    "Time from decoded threat to view notification",
			Buckets: prometheus.DefBuckets,
		},
	)

	// View surface

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "View clients connected over WebSocket",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Messages written to view clients",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Messages dropped because a view client was too slow",
		},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordGeoLookup records the latency of one external lookup and, on
// failure, its reason.
func RecordGeoLookup(duration time.Duration, reason string) {
	GeoLookupDuration.Observe(duration.Seconds())
	if reason != "" {
		GeoLookupErrors.WithLabelValues(reason).Inc()
	}
}

// RecordAPIRequest records one HTTP API request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetStreamState maps a connection state name onto the StreamState gauge.
func SetStreamState(state string) {
	switch state {
	case "open":
		StreamState.Set(3)
	case "reconnecting":
		StreamState.Set(2)
	case "connecting":
		StreamState.Set(1)
	default:
		StreamState.Set(0)
	}
}
