// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/threatfeed/internal/models"
)

// HealthLive always reports alive while the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, models.HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
	})
}

// HealthReady returns 200 once the threat stream is open and 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	state := h.pipe.State()

	statusCode := http.StatusOK
	status := "ready"
	if !state.Live() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	NewResponseWriter(w, r).Status(statusCode, models.HealthStatus{
		Status:    status,
		Stream:    string(state),
		Timestamp: time.Now().UTC(),
	})
}
