// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/validation"
	ws "github.com/tomtom215/threatfeed/internal/websocket"
)

// threatsRequest holds the query parameters of GET /threats.
type threatsRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=10000"`
}

// Threats returns the buffered threats, oldest first, with the coordinate of
// every source address. ?limit=N keeps only the newest N.
func (h *Handler) Threats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req threatsRequest
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		req.Limit = n
	}
	if verrs := validation.ValidateStruct(&req); verrs != nil {
		rw.ValidationError(verrs.Error(), verrs.Fields)
		return
	}

	snap, total := h.pipe.SnapshotLatest(req.Limit)

	rw.SuccessWithMeta(snap, &APIMeta{Pagination: &PaginationMeta{
		Total:   total,
		Count:   len(snap.Threats),
		Limit:   req.Limit,
		HasMore: len(snap.Threats) < total,
	}})
}

// Location returns the render-time coordinate for {ip}: the default for
// private and absent addresses, the cached coordinate, or the map default
// with cached=false.
func (h *Handler) Location(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ip := chi.URLParam(r, "ip")
	if !validation.IsIP(ip) {
		rw.BadRequest("ip must be a valid IP address")
		return
	}

	coord, cached := h.pipe.Locate(ip)
	rw.Success(models.LocationResponse{
		IP:         ip,
		Coordinate: coord,
		Cached:     cached,
	})
}

// Status reports the state of every pipeline stage.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	breaker := "disabled"
	if h.breaker != nil {
		breaker = h.breaker.State()
	}
	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.GetClientCount()
	}

	stats := h.pipe.Resolver().Cache().Stats()

	WriteSuccess(w, r, models.StatusResponse{
		State:           h.pipe.State(),
		Endpoint:        h.endpoint,
		BufferedThreats: h.pipe.Buffer().Len(),
		BufferCapacity:  h.pipe.Buffer().Cap(),
		CachedLocations: stats.Size,
		CacheCapacity:   stats.Capacity,
		CacheHits:       stats.Hits,
		CacheMisses:     stats.Misses,
		ViewClients:     clients,
		BreakerState:    breaker,
		Uptime:          time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:       time.Now().UTC(),
	})
}

// WebSocket upgrades the connection and registers a live view client.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !h.wsHub.RegisterClient(r.Context(), client) {
		logging.Ctx(r.Context()).Warn().Msg("WebSocket client dropped: hub not running")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "hub not running"))
		_ = conn.Close()
		return
	}
	client.Start()
}
