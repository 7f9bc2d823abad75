// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybzcircle/realtime/internal/models"
)

// startTestNATS runs an embedded NATS server on a random port.
func startTestNATS(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		ServerName: "bridge-test",
		Host:       "127.0.0.1",
		Port:       -1,
		NoLog:      true,
		NoSigs:     true,
	})
	require.NoError(t, err)

	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "embedded nats not ready")
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestActivityBridge_ProcessesPublishedEvents(t *testing.T) {
	ns := startTestNATS(t)

	hub := NewHub()
	st := newMockStore()
	st.principals["u1"] = []string{"f1"}
	notifier := NewNotifier(st, hub)

	friend := newTestClient(hub, "f1")
	hub.Admit(friend)

	bridge := NewActivityBridge(ns.ClientURL(), "activity.>", st, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bridge.Serve(ctx) }()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	// The bridge subscribes asynchronously; wait for the subscription to land.
	require.Eventually(t, func() bool { return ns.NumSubscriptions() > 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, nc.Publish("activity.checkout",
		[]byte(`{"userId":"u1","eventId":"e1","actionType":"purchase","metadata":{"source":"mobile"}}`)))
	require.NoError(t, nc.Flush())

	require.Eventually(t, func() bool {
		return len(st.recordedBehaviors()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := st.recordedBehaviors()[0]
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "e1", rec.EventID)
	assert.Equal(t, models.ActionTypePurchase, rec.ActionType)
	assert.Equal(t, "mobile", rec.Metadata["source"])

	require.Eventually(t, func() bool { return len(friend.send) == 1 }, 2*time.Second, 10*time.Millisecond)
	msgs := drainSent(friend)
	activity := msgs[0].(FriendActivityMessage)
	assert.Equal(t, "u1", activity.UserID)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop after cancel")
	}
}

func TestActivityBridge_DropsMalformedEvents(t *testing.T) {
	hub := NewHub()
	st := newMockStore()
	bridge := NewActivityBridge("", "activity.>", st, NewNotifier(st, hub))

	bridge.handle(context.Background(), []byte(`{not json`))
	bridge.handle(context.Background(), []byte(`{"userId":"u1","eventId":"e1"}`))
	bridge.handle(context.Background(), []byte(`{"eventId":"e1","actionType":"view"}`))

	assert.Empty(t, st.recordedBehaviors())
}

func TestActivityBridge_NonPurchaseDoesNotNotify(t *testing.T) {
	hub := NewHub()
	st := newMockStore()
	st.principals["u1"] = []string{"f1"}
	friend := newTestClient(hub, "f1")
	hub.Admit(friend)

	bridge := NewActivityBridge("", "activity.>", st, NewNotifier(st, hub))
	bridge.handle(context.Background(), []byte(`{"userId":"u1","eventId":"e1","actionType":"view"}`))

	assert.Len(t, st.recordedBehaviors(), 1)
	assert.Empty(t, drainSent(friend), "views are recorded but not fanned out")
}

func TestActivityBridge_ConnectFailureReturnsError(t *testing.T) {
	hub := NewHub()
	st := newMockStore()
	bridge := NewActivityBridge("nats://127.0.0.1:1", "activity.>", st, NewNotifier(st, hub))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := bridge.Serve(ctx)
	require.Error(t, err)
}

func TestActivityBridge_String(t *testing.T) {
	assert.Equal(t, "activity-bridge", NewActivityBridge("", "", nil, nil).String())
}
