// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vybzcircle/realtime/internal/config"
	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/realtime"
	"github.com/vybzcircle/realtime/internal/store"
)

// Handler bundles the HTTP endpoints with their dependencies.
type Handler struct {
	cfg      *config.Config
	hub      *realtime.Hub
	composer *realtime.Composer
	router   *realtime.Router
	store    store.Store

	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewHandler creates the endpoint handler set.
func NewHandler(cfg *config.Config, hub *realtime.Hub, composer *realtime.Composer, rt *realtime.Router, st store.Store) *Handler {
	h := &Handler{
		cfg:       cfg,
		hub:       hub,
		composer:  composer,
		router:    rt,
		store:     st,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin validates the Origin header against the configured CORS
// origins. Requests without an Origin header (non-browser clients) are
// always accepted.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket origin rejected")
	return false
}

// Recommendations upgrades the request to a live recommendation
// connection. The user identifier comes from the URL path; a request
// without one is upgraded and then immediately closed with a policy
// violation so browser clients observe a proper close code instead of a
// failed handshake.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	if userID == "" {
		logging.Warn().Str("remote_addr", r.RemoteAddr).Msg("rejecting connection without user id")
		closeWith(conn, websocket.ClosePolicyViolation, "missing user id")
		return
	}

	if h.hub == nil || h.router == nil {
		logging.Error().Msg("realtime core not initialized, closing connection")
		closeWith(conn, websocket.CloseInternalServerErr, "service unavailable")
		return
	}

	client := realtime.NewClient(h.hub, conn, userID, h.router, realtime.ClientOptions{
		SendBuffer:   h.cfg.Realtime.SendBufferSize,
		InboundRate:  h.cfg.Realtime.InboundRatePerSec,
		InboundBurst: h.cfg.Realtime.InboundBurst,
	})
	h.hub.Admit(client)
	client.Start()

	// Initial payload; runs off the request goroutine so the handshake
	// response is not delayed by store reads.
	go func() {
		_ = h.composer.Compose(context.Background(), userID)
	}()
}

// closeWith sends a close frame and drops the connection without ever
// registering it.
func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(5*time.Second))
	_ = conn.Close()
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the store must answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("readiness check failed")
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "database unavailable", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health reports overall service health with connection counts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	overall := "healthy"
	dbStatus := "ok"
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		overall = "degraded"
		dbStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, map[string]any{
		"status":         overall,
		"database":       dbStatus,
		"active_clients": h.hub.ClientCount(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}
