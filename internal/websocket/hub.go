// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeState    = "state"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StateData is the payload of a state message.
type StateData struct {
	State     models.ConnectionState `json:"state"`
	Timestamp string                 `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	sourceMu sync.RWMutex
	source   func() *models.Snapshot

	doneMu sync.Mutex
	done   chan struct{} // closed when a run ends
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// stopped returns a channel that is closed once the current run ends.
func (h *Hub) stopped() <-chan struct{} {
	h.doneMu.Lock()
	defer h.doneMu.Unlock()
	return h.done
}

// RegisterClient hands client to the running hub. It returns false when
// ctx ends first or the hub is not running.
func (h *Hub) RegisterClient(ctx context.Context, client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-ctx.Done():
		return false
	case <-h.stopped():
		return false
	}
}

// SetSnapshotSource sets the function used to greet newly registered
// clients with the current view.
func (h *Hub) SetSnapshotSource(fn func() *models.Snapshot) {
	h.sourceMu.Lock()
	defer h.sourceMu.Unlock()
	h.source = fn
}

// RunWithContext runs the hub until ctx is cancelled, then closes every
// client and returns ctx.Err().
//
// Shutdown is checked first and lifecycle events before broadcasts, so a
// client registered before a broadcast is queued always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.doneMu.Lock()
	select {
	case <-h.done:
		h.done = make(chan struct{})
	default:
	}
	h.doneMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case payload := <-h.broadcast:
			h.broadcastToClients(payload)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client connected")

	h.sourceMu.RLock()
	source := h.source
	h.sourceMu.RUnlock()
	if source == nil {
		return
	}
	payload, err := json.Marshal(Message{Type: MessageTypeSnapshot, Data: source()})
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal initial snapshot")
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	count := h.GetClientCount()
	h.closeAllClients()

	h.doneMu.Lock()
	close(h.done)
	h.doneMu.Unlock()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in ID order. Callers hold h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients queues payload for every client, dropping clients
// whose queue is full.
func (h *Hub) broadcastToClients(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- payload:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("websocket client too slow, disconnecting")
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// BroadcastJSON queues a message for all connected clients. The message is
// dropped if the broadcast queue is full.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		logging.Error().Err(err).Str("message_type", messageType).Msg("failed to marshal broadcast message")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// PublishSnapshot broadcasts snap to all clients.
func (h *Hub) PublishSnapshot(snap *models.Snapshot) {
	h.BroadcastJSON(MessageTypeSnapshot, snap)
}

// PublishState broadcasts a stream connection state change.
func (h *Hub) PublishState(state models.ConnectionState) {
	h.BroadcastJSON(MessageTypeState, StateData{
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
