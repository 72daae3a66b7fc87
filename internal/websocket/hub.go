// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/metrics"
	"github.com/tomtom215/tillmirror/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types
const (
	MessageTypePending       = "pending"
	MessageTypeNetwork       = "network"
	MessageTypeSyncCompleted = "sync_completed"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message is one frame sent to or received from a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// PendingData is sent with pending messages.
type PendingData struct {
	Count  int            `json:"count"`
	ByType map[string]int `json:"by_type"`
}

// NetworkData is sent with network messages.
type NetworkData struct {
	Online    bool   `json:"online"`
	Timestamp string `json:"timestamp"`
}

// SyncCompletedData is sent with sync_completed messages.
type SyncCompletedData struct {
	EntityType string `json:"entity_type"`
	Synced     int    `json:"synced"`
	Failed     int    `json:"failed"`
	Timestamp  string `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// latest holds the last state message per type, replayed to new clients.
	latestMu sync.Mutex
	latest   map[string]Message
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		latest:     make(map[string]Message),
	}
}

// Serve runs the hub until ctx is cancelled. Lifecycle events are handled
// before broadcasts so a client registered ahead of a message receives it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
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
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String names the service in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	for _, msg := range h.latestMessages() {
		select {
		case client.send <- msg:
		default:
		}
	}
	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
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
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// logGracefulShutdown closes every client and logs why the hub stopped.
// Cancellation is the normal path, so ctx.Err() is not logged as an error.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in connection order. Caller holds h.mu.
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

// broadcastToClients delivers message to every client. A client whose send
// buffer is full is dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped", len(toRemove)).Msg("dropped slow websocket clients")
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

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remember(message Message) {
	h.latestMu.Lock()
	defer h.latestMu.Unlock()
	h.latest[message.Type] = message
}

// latestMessages returns the remembered state messages, network first.
func (h *Hub) latestMessages() []Message {
	h.latestMu.Lock()
	defer h.latestMu.Unlock()

	var out []Message
	for _, t := range []string{MessageTypeNetwork, MessageTypePending} {
		if msg, ok := h.latest[t]; ok {
			out = append(out, msg)
		}
	}
	return out
}

// BroadcastJSON queues a message for every client without blocking.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	message := Message{Type: messageType, Data: data}
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// PendingChanged broadcasts the pending badge count.
func (h *Hub) PendingChanged(total int, byType map[string]int) {
	if byType == nil {
		byType = map[string]int{}
	}
	message := Message{Type: MessageTypePending, Data: PendingData{Count: total, ByType: byType}}
	h.remember(message)
	h.BroadcastJSON(message.Type, message.Data)
}

// SyncCompleted broadcasts the result of a sync pass.
func (h *Hub) SyncCompleted(entityType string, result models.SyncResult) {
	h.BroadcastJSON(MessageTypeSyncCompleted, SyncCompletedData{
		EntityType: entityType,
		Synced:     result.Synced,
		Failed:     result.Failed,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	logging.Debug().Int("clients", h.GetClientCount()).Str("entity_type", entityType).Msg("broadcast sync_completed")
}

// NetworkChanged broadcasts a connectivity transition.
func (h *Hub) NetworkChanged(online bool) {
	message := Message{Type: MessageTypeNetwork, Data: NetworkData{
		Online:    online,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}
	h.remember(message)
	h.BroadcastJSON(message.Type, message.Data)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
