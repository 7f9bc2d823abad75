// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides data access for the realtime service. The Store
// interface is the seam between the recommendation core and the relational
// backend; the DuckDB implementation is the production backend and tests
// substitute mocks.
//
// Every query stands alone. The realtime core assumes no transactional
// guarantees across calls.
package store

import (
	"context"
	"time"

	"github.com/vybzcircle/realtime/internal/models"
)

// Store is the read/write surface the realtime core depends on.
//
// Read methods treat "no rows" as an empty result, never an error:
// GetUserPreferences returns the zero value for unknown users and
// GetEventStats returns nil for unknown events.
type Store interface {
	// GetUserPreferences returns the stored preferences for a user.
	// Unknown users yield an empty preferences value, not an error.
	GetUserPreferences(ctx context.Context, userID string) (models.UserPreferences, error)

	// GetTrendingEvents returns the global trending list ordered by
	// engagement score descending, capped at limit.
	GetTrendingEvents(ctx context.Context, limit int) ([]models.TrendingEvent, error)

	// GetAcceptedFriendIDs returns the friend identifiers of a user's
	// accepted friendships (user -> friends direction).
	GetAcceptedFriendIDs(ctx context.Context, userID string) ([]string, error)

	// GetFriendPrincipalIDs returns the principal user identifiers of
	// accepted friendships where the given user is the friend side
	// (friend -> users direction). Used for social fan-out.
	GetFriendPrincipalIDs(ctx context.Context, userID string) ([]string, error)

	// GetFriendsUpcomingPurchases returns events that the given friends
	// purchased and that start at or after the given time, most recent
	// purchases first, capped at limit.
	GetFriendsUpcomingPurchases(ctx context.Context, friendIDs []string, after time.Time, limit int) ([]models.Event, error)

	// GetEventStats returns the live trending statistics for one event,
	// or nil if the event has no stats row.
	GetEventStats(ctx context.Context, eventID string) (*models.TrendingStats, error)

	// InsertBehavior persists a user action record.
	InsertBehavior(ctx context.Context, rec models.BehaviorRecord) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
