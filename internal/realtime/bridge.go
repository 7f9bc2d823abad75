// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
	"github.com/vybzcircle/realtime/internal/models"
	"github.com/vybzcircle/realtime/internal/store"
)

// ActivityEvent is the wire shape other Vybz services publish when a
// user acts outside the live connection (mobile checkout, web feed).
type ActivityEvent struct {
	UserID     string         `json:"userId"`
	EventID    string         `json:"eventId"`
	ActionType string         `json:"actionType"`
	Metadata   map[string]any `json:"metadata"`
}

// ActivityBridge subscribes to the platform's activity subject on NATS
// and feeds external actions into the same pipeline as track_action
// frames: the behavior is recorded and, for purchases, fanned out to the
// actor's connected friends.
type ActivityBridge struct {
	url     string
	subject string

	store    store.Store
	notifier *Notifier

	now   func() time.Time
	newID func() string
}

// NewActivityBridge builds a bridge. It does not connect until Serve.
func NewActivityBridge(url, subject string, st store.Store, notifier *Notifier) *ActivityBridge {
	return &ActivityBridge{
		url:      url,
		subject:  subject,
		store:    st,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Serve connects, subscribes and processes activity events until the
// context is canceled. A connect or subscribe failure returns an error
// so the supervisor restarts the bridge with backoff. Implements
// suture.Service.
func (b *ActivityBridge) Serve(ctx context.Context) error {
	nc, err := nats.Connect(b.url,
		nats.Name("vybz-realtime-bridge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Close()

	sub, err := nc.Subscribe(b.subject, func(m *nats.Msg) {
		b.handle(ctx, m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}

	logging.Info().Str("url", b.url).Str("subject", b.subject).Msg("activity bridge started")

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		logging.Warn().Err(err).Msg("nats drain failed")
	}
	logging.Info().Msg("activity bridge stopped")
	return ctx.Err()
}

// handle processes one activity event. Malformed events are counted and
// dropped; store failures abandon the event without fan-out.
func (b *ActivityBridge) handle(ctx context.Context, data []byte) {
	var ev ActivityEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logging.Warn().Err(err).Msg("discarding malformed activity event")
		metrics.BridgeEventsTotal.WithLabelValues("malformed").Inc()
		return
	}
	if ev.UserID == "" || ev.EventID == "" || ev.ActionType == "" {
		logging.Warn().Msg("discarding activity event with missing fields")
		metrics.BridgeEventsTotal.WithLabelValues("malformed").Inc()
		return
	}

	rec := models.BehaviorRecord{
		ID:         b.newID(),
		UserID:     ev.UserID,
		EventID:    ev.EventID,
		ActionType: ev.ActionType,
		Metadata:   ev.Metadata,
		CreatedAt:  b.now(),
	}
	if err := b.store.InsertBehavior(ctx, rec); err != nil {
		logging.Error().Err(err).Str("user_id", ev.UserID).Msg("failed to record bridged behavior")
		metrics.BridgeEventsTotal.WithLabelValues("store_error").Inc()
		return
	}

	if ev.ActionType == models.ActionTypePurchase {
		b.notifier.NotifyFriendsOfAction(ctx, ev.UserID, map[string]any{
			"eventId":    ev.EventID,
			"actionType": ev.ActionType,
		})
	}

	metrics.BridgeEventsTotal.WithLabelValues("processed").Inc()
}

// String identifies the service in supervisor logs.
func (b *ActivityBridge) String() string {
	return "activity-bridge"
}
