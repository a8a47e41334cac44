// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package main is the entry point for the threatfeed server.

threatfeed keeps a persistent WebSocket connection to a threat-event stream,
geolocates each event's source address, keeps the most recent events in a
bounded window and pushes that window to browser views.

# Application Architecture

	threatfeed (root)
	├── ingest-layer
	│   └── threat-stream   stream.Consumer -> pipeline.Pipeline
	├── view-layer
	│   └── view-hub        websocket.Hub
	└── api-layer
	    └── http-server     chi router (REST, /api/v1/ws, /metrics)

Component initialization order:

 1. Configuration: Koanf v2 (defaults, YAML file, environment)
 2. Logging: zerolog, JSON or console
 3. GeoStore: optional BadgerDB coordinate store (GEOIP_PERSIST_PATH)
 4. Geolocation: LRU cache, ipgeolocation.io client behind a rate limiter
    and circuit breaker, resolver with timeout and fallback
 5. Buffer, hub and pipeline
 6. Stream consumer, publishing connection state to the pipeline
 7. HTTP router and supervisor tree

# Configuration

	STREAM_URL=ws://localhost:8000/ws   # upstream threat stream
	STREAM_MAX_RETRIES=0                # consecutive failed dials before giving up, 0 = never
	GEOIP_API_KEY=<key>                 # without a key every lookup falls back
	GEOIP_TIMEOUT=5s
	GEOIP_CACHE_SIZE=10000
	GEOIP_PERSIST_PATH=/data/geo        # empty keeps coordinates in memory only
	BUFFER_CAPACITY=51
	HTTP_PORT=8080
	CORS_ORIGINS=https://map.example.com
	LOG_LEVEL=info
	LOG_FORMAT=json

# Signal Handling

SIGINT and SIGTERM cancel the root context. The consumer closes its socket,
the hub closes every view client and the HTTP server drains for
HTTP_SHUTDOWN_TIMEOUT.
*/
package main
