// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/pipeline"
	ws "github.com/tomtom215/threatfeed/internal/websocket"
)

// BreakerStater reports the geolocation circuit breaker state.
type BreakerStater interface {
	State() string
}

// Handler contains dependencies for API handlers.
type Handler struct {
	pipe        *pipeline.Pipeline
	wsHub       *ws.Hub
	breaker     BreakerStater
	endpoint    string
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates a handler over the pipeline and hub. endpoint is the
// threat stream URL reported by /status; corsOrigins also governs which
// origins may open a WebSocket.
func NewHandler(pipe *pipeline.Pipeline, hub *ws.Hub, endpoint string, corsOrigins []string) *Handler {
	return &Handler{
		pipe:        pipe,
		wsHub:       hub,
		endpoint:    endpoint,
		corsOrigins: corsOrigins,
		startTime:   time.Now(),
	}
}

// SetBreaker attaches the geolocation breaker for status reporting.
func (h *Handler) SetBreaker(b BreakerStater) {
	h.breaker = b
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts browser origins listed in the CORS
// configuration. Requests without an Origin header are rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
