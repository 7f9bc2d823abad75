// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
	"github.com/vybzcircle/realtime/internal/models"
	"github.com/vybzcircle/realtime/internal/store"
)

// Router dispatches inbound client frames to their handlers. A frame
// that fails to decode or names an unknown type is logged and discarded;
// it never closes the connection.
type Router struct {
	store    store.Store
	composer *Composer
	notifier *Notifier

	// refreshDelay is how long after a tracked action the follow-up
	// recommendation refresh fires. Duplicate actions inside the window
	// coalesce into a single refresh.
	refreshDelay time.Duration

	now   func() time.Time
	newID func() string
}

// NewRouter builds a router. The notifier may be nil when social
// notifications are disabled.
func NewRouter(st store.Store, composer *Composer, notifier *Notifier, refreshDelay time.Duration) *Router {
	return &Router{
		store:        st,
		composer:     composer,
		notifier:     notifier,
		refreshDelay: refreshDelay,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// HandleMessage decodes and dispatches one inbound frame.
func (r *Router) HandleMessage(ctx context.Context, c *Client, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Warn().Err(err).Str("user_id", c.UserID()).Msg("discarding malformed client frame")
		metrics.InboundMessages.WithLabelValues("malformed").Inc()
		return
	}

	switch msg.Type {
	case MessageTypeTrackAction:
		metrics.InboundMessages.WithLabelValues(MessageTypeTrackAction).Inc()
		r.handleTrackAction(ctx, c, msg)

	case MessageTypeRequestUpdate:
		metrics.InboundMessages.WithLabelValues(MessageTypeRequestUpdate).Inc()
		_ = r.composer.Compose(ctx, c.UserID())

	case MessageTypeSubscribeEvent:
		metrics.InboundMessages.WithLabelValues(MessageTypeSubscribeEvent).Inc()
		r.handleSubscribeEvent(ctx, c, msg)

	default:
		logging.Debug().
			Str("user_id", c.UserID()).
			Str("type", msg.Type).
			Msg("ignoring unknown message type")
		metrics.InboundMessages.WithLabelValues("unknown").Inc()
	}
}

// handleTrackAction records a behavior event, schedules a delayed
// recommendation refresh, and fans the action out to the user's friends
// when it is a purchase.
func (r *Router) handleTrackAction(ctx context.Context, c *Client, msg InboundMessage) {
	if msg.EventID == "" || msg.ActionType == "" {
		logging.Warn().
			Str("user_id", c.UserID()).
			Msg("discarding track_action with missing event id or action type")
		metrics.InboundMessages.WithLabelValues("malformed").Inc()
		return
	}

	rec := models.BehaviorRecord{
		ID:         r.newID(),
		UserID:     c.UserID(),
		EventID:    msg.EventID,
		ActionType: msg.ActionType,
		Metadata:   msg.Metadata,
		CreatedAt:  r.now(),
	}
	if err := r.store.InsertBehavior(ctx, rec); err != nil {
		logging.Error().Err(err).Str("user_id", c.UserID()).Msg("failed to record behavior")
		return
	}

	r.scheduleRefresh(c)

	if msg.ActionType == models.ActionTypePurchase && r.notifier != nil {
		r.notifier.NotifyFriendsOfAction(ctx, c.UserID(), map[string]any{
			"eventId":    msg.EventID,
			"actionType": msg.ActionType,
		})
	}
}

// scheduleRefresh arms a one-shot delayed recomposition for the client.
// A burst of actions inside the delay window produces exactly one
// refresh: later actions see the pending flag and do nothing.
func (r *Router) scheduleRefresh(c *Client) {
	if !c.refreshPending.CompareAndSwap(false, true) {
		return
	}

	userID := c.UserID()
	time.AfterFunc(r.refreshDelay, func() {
		c.refreshPending.Store(false)
		_ = r.composer.Compose(context.Background(), userID)
	})
}

// handleSubscribeEvent replies with the current trending statistics for
// one event. An event with no statistics row still gets a reply, with a
// null stats block, so the client can render "no data yet".
func (r *Router) handleSubscribeEvent(ctx context.Context, c *Client, msg InboundMessage) {
	if msg.EventID == "" {
		logging.Warn().Str("user_id", c.UserID()).Msg("discarding subscribe_event with missing event id")
		metrics.InboundMessages.WithLabelValues("malformed").Inc()
		return
	}

	stats, err := r.store.GetEventStats(ctx, msg.EventID)
	if err != nil {
		logging.Error().Err(err).
			Str("user_id", c.UserID()).
			Str("event_id", msg.EventID).
			Msg("failed to load event stats")
		return
	}

	c.Enqueue(EventStatsMessage{
		Type:    MessageTypeEventStats,
		EventID: msg.EventID,
		Stats:   stats,
	})
}
