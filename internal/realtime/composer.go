// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
	"github.com/vybzcircle/realtime/internal/models"
	"github.com/vybzcircle/realtime/internal/store"
)

// Composer assembles personalized recommendation payloads and pushes
// them to individual connections. A composition runs three reads against
// the store (preferences, trending, friends' upcoming purchases) and is
// abandoned wholesale if any read fails; the client simply keeps its
// previous payload until the next refresh.
type Composer struct {
	store store.Store
	hub   *Hub

	trendingLimit int
	friendsLimit  int

	now func() time.Time
}

// NewComposer builds a composer over the given store and registry.
func NewComposer(st store.Store, hub *Hub, trendingLimit, friendsLimit int) *Composer {
	return &Composer{
		store:         st,
		hub:           hub,
		trendingLimit: trendingLimit,
		friendsLimit:  friendsLimit,
		now:           time.Now,
	}
}

// Compose builds and pushes a recommendations_update to one user. If the
// user has no open connection the store is never queried: compositions
// for dead connections are skipped entirely, not computed and discarded.
func (cp *Composer) Compose(ctx context.Context, userID string) error {
	client := cp.hub.Lookup(userID)
	if client == nil || !client.IsOpen() {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.ComposeDuration.Observe(time.Since(start).Seconds())
	}()

	data, err := cp.buildData(ctx, userID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("recommendation composition failed")
		return err
	}

	// The connection may have closed while we were reading; Enqueue
	// re-checks and refuses sends to a closed client.
	msg := NewRecommendationsUpdate(data, cp.now())
	if client.Enqueue(msg) {
		cp.hub.Touch(userID)
	}
	return nil
}

// buildData runs the three store reads that make up a payload. Every
// slice in the result is non-nil, even when empty.
func (cp *Composer) buildData(ctx context.Context, userID string) (RecommendationData, error) {
	prefs, err := cp.store.GetUserPreferences(ctx, userID)
	if err != nil {
		return RecommendationData{}, fmt.Errorf("load preferences: %w", err)
	}

	trending, err := cp.store.GetTrendingEvents(ctx, cp.trendingLimit)
	if err != nil {
		return RecommendationData{}, fmt.Errorf("load trending events: %w", err)
	}

	friendIDs, err := cp.store.GetAcceptedFriendIDs(ctx, userID)
	if err != nil {
		return RecommendationData{}, fmt.Errorf("load friend ids: %w", err)
	}

	friendsEvents := []models.Event{}
	if len(friendIDs) > 0 {
		friendsEvents, err = cp.store.GetFriendsUpcomingPurchases(ctx, friendIDs, cp.now(), cp.friendsLimit)
		if err != nil {
			return RecommendationData{}, fmt.Errorf("load friends events: %w", err)
		}
	}

	preferences := prefs.FavoriteCategories
	if preferences == nil {
		preferences = []string{}
	}
	if trending == nil {
		trending = []models.TrendingEvent{}
	}
	if friendsEvents == nil {
		friendsEvents = []models.Event{}
	}

	return RecommendationData{
		Trending:      trending,
		FriendsEvents: friendsEvents,
		Preferences:   preferences,
	}, nil
}
