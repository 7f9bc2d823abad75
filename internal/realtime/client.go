// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
)

const (
	// writeWait is the maximum time allowed for a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long the connection survives without a pong.
	pongWait = 60 * time.Second

	// pingPeriod is the liveness probe interval; must be under pongWait.
	pingPeriod = 30 * time.Second

	// maxMessageSize caps inbound frames. Client frames are small control
	// messages; anything larger is a misbehaving peer.
	maxMessageSize = 32 * 1024
)

// ClientOptions tunes per-connection buffering and inbound rate limiting.
type ClientOptions struct {
	SendBuffer   int
	InboundRate  float64
	InboundBurst int
}

// DefaultClientOptions returns the production defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		SendBuffer:   256,
		InboundRate:  20,
		InboundBurst: 40,
	}
}

// Client is one registered live connection. Outbound messages flow
// through a bounded send queue drained by the write pump; inbound frames
// are read by the read pump and dispatched synchronously to the router.
type Client struct {
	userID string
	hub    *Hub
	conn   *websocket.Conn
	router *Router

	send chan any
	done chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
	closeCode atomic.Int32
	closeText atomic.Pointer[string]

	lastUpdate     atomic.Int64
	refreshPending atomic.Bool

	limiter *rate.Limiter
}

// NewClient wraps an upgraded connection. The client is not registered
// and its pumps are not running until the caller admits and starts it.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, router *Router, opts ClientOptions) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultClientOptions().SendBuffer
	}
	if opts.InboundRate <= 0 {
		opts.InboundRate = DefaultClientOptions().InboundRate
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = DefaultClientOptions().InboundBurst
	}

	c := &Client{
		userID:  userID,
		hub:     hub,
		conn:    conn,
		router:  router,
		send:    make(chan any, opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.InboundRate), opts.InboundBurst),
	}
	c.lastUpdate.Store(time.Now().UnixNano())
	c.closeCode.Store(websocket.CloseNormalClosure)
	return c
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// UserID returns the user this connection belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// IsOpen reports whether the connection can still accept messages.
func (c *Client) IsOpen() bool {
	return !c.closed.Load()
}

// LastUpdate returns when this connection last received a successful
// recommendations push.
func (c *Client) LastUpdate() time.Time {
	return time.Unix(0, c.lastUpdate.Load())
}

func (c *Client) touch() {
	c.lastUpdate.Store(time.Now().UnixNano())
}

// Enqueue queues an outbound message. Returns false if the connection is
// closed or the send queue is full; full-queue messages are dropped with
// a warning rather than blocking the sender.
func (c *Client) Enqueue(msg any) bool {
	if c.closed.Load() {
		metrics.DroppedMessages.WithLabelValues("closed").Inc()
		return false
	}

	select {
	case c.send <- msg:
		metrics.PushesTotal.WithLabelValues(messageType(msg)).Inc()
		return true
	default:
		logging.Warn().
			Str("user_id", c.userID).
			Str("message_type", messageType(msg)).
			Msg("client send queue full, dropping message")
		metrics.DroppedMessages.WithLabelValues("buffer_full").Inc()
		return false
	}
}

// shutdown marks the connection closed and signals the write pump to
// deliver a close frame with the given code. Safe to call multiple
// times; only the first call wins.
func (c *Client) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeCode.Store(int32(code))
		c.closeText.Store(&reason)
		close(c.done)
	})
}

// readPump consumes frames from the peer until the connection errors or
// closes, dispatching each frame to the router on this goroutine. Frame
// decoding happens in the router so that a malformed payload is reported
// back to the client without tearing down the connection.
func (c *Client) readPump() {
	defer func() {
		c.shutdown(websocket.CloseNormalClosure, "")
		c.hub.release(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("user_id", c.userID).Msg("unexpected websocket close")
			}
			return
		}

		if !c.limiter.Allow() {
			logging.Warn().Str("user_id", c.userID).Msg("inbound rate limit exceeded, dropping frame")
			metrics.DroppedMessages.WithLabelValues("rate_limited").Inc()
			continue
		}

		c.router.HandleMessage(context.Background(), c, data)
	}
}

// writePump drains the send queue, probes liveness with periodic pings,
// and writes the close frame once the connection shuts down.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(msg)
			if err != nil {
				logging.Error().Err(err).Str("user_id", c.userID).Msg("failed to encode outbound message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Debug().Err(err).Str("user_id", c.userID).Msg("websocket write failed")
				c.shutdown(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			code := int(c.closeCode.Load())
			reason := ""
			if p := c.closeText.Load(); p != nil {
				reason = *p
			}
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(writeWait))
			return
		}
	}
}
