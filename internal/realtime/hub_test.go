// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vybzcircle/realtime/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// newTestClient builds a client with no underlying transport. Its pumps
// are never started, so Enqueue and shutdown exercise only the queue and
// lifecycle flags.
func newTestClient(hub *Hub, userID string) *Client {
	c := &Client{
		userID:  userID,
		hub:     hub,
		send:    make(chan any, 16),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(20, 40),
	}
	c.lastUpdate.Store(time.Now().UnixNano())
	return c
}

// drainSent collects everything currently queued for a client.
func drainSent(c *Client) []any {
	var msgs []any
	for {
		select {
		case m := <-c.send:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	require.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_AdmitAndLookup(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "u1")

	hub.Admit(c)

	assert.Equal(t, 1, hub.ClientCount())
	assert.Same(t, c, hub.Lookup("u1"))
	assert.Nil(t, hub.Lookup("u2"))
}

func TestHub_AdmitReplacesExistingConnection(t *testing.T) {
	hub := NewHub()
	first := newTestClient(hub, "u1")
	second := newTestClient(hub, "u1")

	hub.Admit(first)
	hub.Admit(second)

	assert.Equal(t, 1, hub.ClientCount())
	assert.Same(t, second, hub.Lookup("u1"))
	assert.False(t, first.IsOpen(), "superseded connection should be closed")
	assert.True(t, second.IsOpen())
}

func TestHub_RemoveAbsentUserIsNoOp(t *testing.T) {
	hub := NewHub()

	hub.Remove("nobody")
	hub.Remove("nobody")

	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_RemoveRegisteredUser(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "u1")
	hub.Admit(c)

	hub.Remove("u1")

	assert.Equal(t, 0, hub.ClientCount())
	assert.Nil(t, hub.Lookup("u1"))
}

func TestHub_ReleaseDoesNotEvictReplacement(t *testing.T) {
	hub := NewHub()
	first := newTestClient(hub, "u1")
	second := newTestClient(hub, "u1")

	hub.Admit(first)
	hub.Admit(second)

	// The superseded connection's read pump tears down after the
	// replacement is registered; it must not remove the new entry.
	hub.release(first)

	assert.Equal(t, 1, hub.ClientCount())
	assert.Same(t, second, hub.Lookup("u1"))

	hub.release(second)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_StaleUserIDs(t *testing.T) {
	hub := NewHub()

	fresh := newTestClient(hub, "fresh")
	stale1 := newTestClient(hub, "stale-b")
	stale2 := newTestClient(hub, "stale-a")
	stale1.lastUpdate.Store(time.Now().Add(-5 * time.Minute).UnixNano())
	stale2.lastUpdate.Store(time.Now().Add(-10 * time.Minute).UnixNano())
	fresh.lastUpdate.Store(time.Now().Add(-time.Minute).UnixNano())

	hub.Admit(fresh)
	hub.Admit(stale1)
	hub.Admit(stale2)

	ids := hub.StaleUserIDs(4 * time.Minute)
	assert.Equal(t, []string{"stale-a", "stale-b"}, ids, "stale ids sorted for deterministic sweeps")

	t.Run("closed connections are excluded", func(t *testing.T) {
		stale1.shutdown(1000, "")
		ids := hub.StaleUserIDs(4 * time.Minute)
		assert.Equal(t, []string{"stale-a"}, ids)
	})
}

func TestHub_SendToUser(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "u1")
	hub.Admit(c)

	assert.True(t, hub.SendToUser("u1", NewRecommendationsUpdate(RecommendationData{}, time.Now())))
	assert.False(t, hub.SendToUser("ghost", NewRecommendationsUpdate(RecommendationData{}, time.Now())))

	msgs := drainSent(c)
	require.Len(t, msgs, 1)
	update, ok := msgs[0].(RecommendationsUpdate)
	require.True(t, ok)
	assert.Equal(t, MessageTypeRecommendations, update.Type)
}

func TestHub_BroadcastToUsersCountsDeliveries(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "u1")
	c2 := newTestClient(hub, "u2")
	hub.Admit(c1)
	hub.Admit(c2)
	c2.shutdown(1000, "")

	delivered := hub.BroadcastToUsers([]string{"u1", "u2", "ghost"}, NewFriendActivityMessage("u9", nil, time.Now()))

	assert.Equal(t, 1, delivered)
	assert.Len(t, drainSent(c1), 1)
	assert.Empty(t, drainSent(c2))
}

func TestHub_RunWithContextFanOut(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = hub.RunWithContext(ctx)
	}()

	c1 := newTestClient(hub, "u1")
	c2 := newTestClient(hub, "u2")
	hub.Admit(c1)
	hub.Admit(c2)

	hub.Broadcast(NewRecommendationsUpdate(RecommendationData{}, time.Now()))

	require.Eventually(t, func() bool {
		return len(c1.send) == 1 && len(c2.send) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()

	assert.False(t, c1.IsOpen(), "shutdown closes all clients")
	assert.False(t, c2.IsOpen())
	assert.Equal(t, 0, hub.ClientCount())
}

func TestClient_EnqueueDropsWhenClosed(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "u1")
	c.shutdown(1000, "")

	assert.False(t, c.Enqueue(NewRecommendationsUpdate(RecommendationData{}, time.Now())))
	assert.Empty(t, drainSent(c))
}

func TestClient_EnqueueDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "u1")

	for i := 0; i < cap(c.send); i++ {
		require.True(t, c.Enqueue(NewRecommendationsUpdate(RecommendationData{}, time.Now())))
	}
	assert.False(t, c.Enqueue(NewRecommendationsUpdate(RecommendationData{}, time.Now())))
	assert.True(t, c.IsOpen(), "a full buffer drops the message, not the connection")
}

func TestClient_ShutdownIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "u1")

	c.shutdown(1000, "first")
	c.shutdown(1011, "second")

	assert.False(t, c.IsOpen())
	assert.Equal(t, int32(1000), c.closeCode.Load(), "only the first shutdown wins")
}

func TestDefaultClientOptions(t *testing.T) {
	opts := DefaultClientOptions()
	assert.Equal(t, 256, opts.SendBuffer)
	assert.Equal(t, 20.0, opts.InboundRate)
	assert.Equal(t, 40, opts.InboundBurst)
}
