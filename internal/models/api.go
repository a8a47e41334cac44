// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package models

import "time"

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	State           ConnectionState `json:"state"`
	Endpoint        string          `json:"endpoint"`
	BufferedThreats int             `json:"buffered_threats"`
	BufferCapacity  int             `json:"buffer_capacity"`
	CachedLocations int             `json:"cached_locations"`
	CacheCapacity   int             `json:"cache_capacity"`
	CacheHits       int64           `json:"cache_hits"`
	CacheMisses     int64           `json:"cache_misses"`
	ViewClients     int             `json:"view_clients"`
	BreakerState    string          `json:"breaker_state"`
	Uptime          string          `json:"uptime"`
	Timestamp       time.Time       `json:"timestamp"`
}

// LocationResponse is returned by GET /api/v1/locations/{ip}.
type LocationResponse struct {
	IP         string     `json:"ip"`
	Coordinate Coordinate `json:"coordinate"`
	Cached     bool       `json:"cached"`
}

// HealthStatus is returned by the liveness and readiness probes.
type HealthStatus struct {
	Status    string    `json:"status"`
	Stream    string    `json:"stream,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
