// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package api serves the threat view over HTTP using the chi router.

Routes:

	GET /api/v1/threats           buffered threats and their coordinates
	GET /api/v1/locations/{ip}    render-time coordinate for one address
	GET /api/v1/status            stream, buffer, cache and breaker state
	GET /api/v1/ws                WebSocket upgrade for live snapshots
	GET /api/v1/health/live       liveness probe
	GET /api/v1/health/ready      readiness probe, 503 until the stream is open
	GET /metrics                  Prometheus metrics

Every JSON response uses the same envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 0}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}, "meta": {...}}

Global middleware assigns request and correlation IDs, resolves the client
IP, recovers panics and applies CORS. API routes are rate limited per client
IP with go-chi/httprate and instrumented with Prometheus.
*/
package api
