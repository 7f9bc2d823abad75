// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"time"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
	"github.com/vybzcircle/realtime/internal/store"
)

// Notifier fans a user's actions out to the connected subset of their
// accepted friends. Delivery is best-effort: friends without an open
// connection are skipped and never queued for later.
type Notifier struct {
	store store.Store
	hub   *Hub

	now func() time.Time
}

// NewNotifier builds a social notifier over the given store and registry.
func NewNotifier(st store.Store, hub *Hub) *Notifier {
	return &Notifier{
		store: st,
		hub:   hub,
		now:   time.Now,
	}
}

// NotifyFriendsOfAction pushes a friend_activity message to every
// connected user who has the acting user as an accepted friend. Returns
// the number of deliveries. A friend-list read failure abandons the
// whole notification.
func (n *Notifier) NotifyFriendsOfAction(ctx context.Context, actorID string, action map[string]any) int {
	friendIDs, err := n.store.GetFriendPrincipalIDs(ctx, actorID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", actorID).Msg("failed to load friends for notification")
		return 0
	}
	if len(friendIDs) == 0 {
		return 0
	}

	msg := NewFriendActivityMessage(actorID, action, n.now())
	delivered := n.hub.BroadcastToUsers(friendIDs, msg)
	if delivered > 0 {
		metrics.FriendNotifications.Add(float64(delivered))
		logging.Debug().
			Str("user_id", actorID).
			Int("friends", len(friendIDs)).
			Int("delivered", delivered).
			Msg("friend activity fanned out")
	}
	return delivered
}
