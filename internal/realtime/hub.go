// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
)

// Hub is the connection registry: it tracks which users currently have an
// open live connection, keyed by user identifier. At most one connection
// is registered per user at any instant; a reconnect replaces the entry
// and the previous transport is closed.
//
// The Hub is instantiated once per server process and passed by handle to
// the composer, router, scheduler and notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	broadcast chan any
}

// NewHub creates an empty connection registry.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		broadcast: make(chan any, 256),
	}
}

// Admit registers a client under its user identifier. If a connection for
// the same user already exists it is replaced, and the superseded
// transport is closed so the old socket does not leak.
func (h *Hub) Admit(c *Client) {
	h.mu.Lock()
	prev, replaced := h.clients[c.userID]
	h.clients[c.userID] = c
	total := len(h.clients)
	h.mu.Unlock()

	if replaced {
		prev.shutdown(websocket.CloseNormalClosure, "superseded by newer connection")
		metrics.AdmissionsTotal.WithLabelValues("replaced").Inc()
	} else {
		metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()
	}
	metrics.ActiveConnections.Set(float64(total))

	logging.Info().
		Str("user_id", c.userID).
		Bool("replaced", replaced).
		Int("total_clients", total).
		Msg("client connected")
}

// Lookup returns the registered client for a user, or nil. Callers must
// treat nil and "not open" identically: the connection may close between
// lookup and use, so every send path re-checks openness at send time.
func (h *Hub) Lookup(userID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[userID]
}

// Remove deletes the registry entry for a user. Removing an absent user
// is a no-op.
func (h *Hub) Remove(userID string) {
	h.mu.Lock()
	_, ok := h.clients[userID]
	if ok {
		delete(h.clients, userID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.ActiveConnections.Set(float64(total))
		logging.Info().Str("user_id", userID).Int("total_clients", total).Msg("client disconnected")
	}
}

// release removes a specific client from the registry. Unlike Remove it
// compares the entry by identity, so a client whose registration was
// already replaced by a reconnect does not evict its successor.
func (h *Hub) release(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.userID]
	if ok && current == c {
		delete(h.clients, c.userID)
	} else {
		ok = false
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.ActiveConnections.Set(float64(total))
		logging.Info().Str("user_id", c.userID).Int("total_clients", total).Msg("client disconnected")
	}
}

// Touch updates the last-update timestamp for a user. Called after every
// successful recommendation push to that user.
func (h *Hub) Touch(userID string) {
	if c := h.Lookup(userID); c != nil {
		c.touch()
	}
}

// StaleUserIDs returns the identifiers of open connections whose last
// update is older than the given threshold, sorted for deterministic
// iteration. The snapshot tolerates the registry changing afterwards.
func (h *Hub) StaleUserIDs(threshold time.Duration) []string {
	cutoff := time.Now().Add(-threshold)

	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id, c := range h.clients {
		if c.IsOpen() && c.LastUpdate().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for delivery to every open connection. The
// queue is bounded; when it is full the message is dropped with a warning
// rather than blocking the caller.
func (h *Hub) Broadcast(msg any) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("message_type", messageType(msg)).Msg("broadcast channel full, dropping message")
		metrics.DroppedMessages.WithLabelValues("buffer_full").Inc()
	}
}

// BroadcastToUsers sends a message to each listed user that currently has
// an open connection; identifiers with no open connection are silently
// skipped. Returns the number of deliveries.
func (h *Hub) BroadcastToUsers(userIDs []string, msg any) int {
	delivered := 0
	for _, id := range userIDs {
		if h.SendToUser(id, msg) {
			delivered++
		}
	}
	return delivered
}

// SendToUser sends a message to one user if they have an open connection.
func (h *Hub) SendToUser(userID string, msg any) bool {
	c := h.Lookup(userID)
	if c == nil {
		return false
	}
	return c.Enqueue(msg)
}

// RunWithContext drains the broadcast queue and fans messages out to all
// connected clients until the context is canceled, then closes every
// client. Designed for suture supervision.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			logging.Info().Str("component", "hub").Msg("hub stopped")
			return ctx.Err()

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut delivers one broadcast message to every client in user-id order.
func (h *Hub) fanOut(msg any) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].userID < clients[j].userID })

	for _, c := range clients {
		c.Enqueue(msg)
	}
}

// closeAll shuts down every registered connection. Called on shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
	}
	metrics.ActiveConnections.Set(0)

	if len(clients) > 0 {
		logging.Info().Int("clients_closed", len(clients)).Msg("closed all clients during shutdown")
	}
}

// Close shuts down all connections outside of supervised operation.
func (h *Hub) Close() {
	h.closeAll()
}
