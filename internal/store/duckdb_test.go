// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybzcircle/realtime/internal/config"
	"github.com/vybzcircle/realtime/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedEvent(t *testing.T, db *DB, id, category string, startsAt time.Time) {
	t.Helper()
	_, err := db.Conn().Exec(
		`INSERT INTO events (id, title, category, starts_at) VALUES (?, ?, ?, ?)`,
		id, "Event "+id, category, startsAt)
	require.NoError(t, err)
}

func seedTrending(t *testing.T, db *DB, eventID string, score float64) {
	t.Helper()
	_, err := db.Conn().Exec(
		`INSERT INTO trending_events (event_id, engagement_score, view_count, purchase_count, updated_at)
		 VALUES (?, ?, 10, 2, ?)`,
		eventID, score, time.Now())
	require.NoError(t, err)
}

func seedFriendship(t *testing.T, db *DB, userID, friendID, status string) {
	t.Helper()
	_, err := db.Conn().Exec(
		`INSERT INTO friendships (user_id, friend_id, status) VALUES (?, ?, ?)`,
		userID, friendID, status)
	require.NoError(t, err)
}

func TestGetUserPreferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("missing user yields empty preferences", func(t *testing.T) {
		prefs, err := db.GetUserPreferences(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, "nobody", prefs.UserID)
		assert.NotNil(t, prefs.FavoriteCategories)
		assert.Empty(t, prefs.FavoriteCategories)
	})

	t.Run("stored categories round-trip", func(t *testing.T) {
		_, err := db.Conn().Exec(
			`INSERT INTO user_preferences (user_id, favorite_categories) VALUES (?, ?)`,
			"u1", `["techno","afrobeats"]`)
		require.NoError(t, err)

		prefs, err := db.GetUserPreferences(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"techno", "afrobeats"}, prefs.FavoriteCategories)
	})
}

func TestGetTrendingEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("empty table yields empty slice", func(t *testing.T) {
		trending, err := db.GetTrendingEvents(ctx, 5)
		require.NoError(t, err)
		assert.NotNil(t, trending)
		assert.Empty(t, trending)
	})

	t.Run("ordered by score descending and capped", func(t *testing.T) {
		for i, score := range []float64{10, 90, 50, 70, 30, 20, 80} {
			seedTrending(t, db, uuid.NewString()+"-"+string(rune('a'+i)), score)
		}

		trending, err := db.GetTrendingEvents(ctx, 5)
		require.NoError(t, err)
		require.Len(t, trending, 5)
		for i := 1; i < len(trending); i++ {
			assert.GreaterOrEqual(t, trending[i-1].EngagementScore, trending[i].EngagementScore)
		}
		assert.Equal(t, 90.0, trending[0].EngagementScore)
	})
}

func TestFriendshipQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedFriendship(t, db, "u1", "u2", models.FriendshipStatusAccepted)
	seedFriendship(t, db, "u1", "u3", models.FriendshipStatusPending)
	seedFriendship(t, db, "u4", "u2", models.FriendshipStatusAccepted)

	t.Run("accepted friends of user", func(t *testing.T) {
		ids, err := db.GetAcceptedFriendIDs(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u2"}, ids)
	})

	t.Run("principals that accepted the user", func(t *testing.T) {
		ids, err := db.GetFriendPrincipalIDs(ctx, "u2")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"u1", "u4"}, ids)
	})

	t.Run("no friendships yields empty slice", func(t *testing.T) {
		ids, err := db.GetAcceptedFriendIDs(ctx, "u9")
		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	})
}

func TestGetFriendsUpcomingPurchases(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	seedEvent(t, db, "e-future", "concert", now.Add(48*time.Hour))
	seedEvent(t, db, "e-past", "concert", now.Add(-48*time.Hour))
	seedEvent(t, db, "e-other", "comedy", now.Add(24*time.Hour))

	insertBehavior := func(userID, eventID, action string, at time.Time) {
		require.NoError(t, db.InsertBehavior(ctx, models.BehaviorRecord{
			ID: uuid.NewString(), UserID: userID, EventID: eventID,
			ActionType: action, CreatedAt: at,
		}))
	}

	insertBehavior("f1", "e-future", models.ActionTypePurchase, now.Add(-time.Hour))
	insertBehavior("f1", "e-past", models.ActionTypePurchase, now.Add(-time.Hour))  // event already started
	insertBehavior("f1", "e-other", models.ActionTypeView, now.Add(-time.Minute))   // not a purchase
	insertBehavior("f2", "e-other", models.ActionTypePurchase, now.Add(-time.Hour)) // different friend

	t.Run("filters by friend set, purchase action and start time", func(t *testing.T) {
		events, err := db.GetFriendsUpcomingPurchases(ctx, []string{"f1"}, now, 5)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "e-future", events[0].ID)
	})

	t.Run("multiple friends", func(t *testing.T) {
		events, err := db.GetFriendsUpcomingPurchases(ctx, []string{"f1", "f2"}, now, 5)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("empty friend set performs no lookup", func(t *testing.T) {
		events, err := db.GetFriendsUpcomingPurchases(ctx, nil, now, 5)
		require.NoError(t, err)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	})
}

func TestGetEventStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("missing event yields nil stats", func(t *testing.T) {
		stats, err := db.GetEventStats(ctx, "e404")
		require.NoError(t, err)
		assert.Nil(t, stats)
	})

	t.Run("existing event returns full row", func(t *testing.T) {
		seedTrending(t, db, "e42", 77.5)

		stats, err := db.GetEventStats(ctx, "e42")
		require.NoError(t, err)
		require.NotNil(t, stats)
		assert.Equal(t, "e42", stats.EventID)
		assert.Equal(t, 77.5, stats.EngagementScore)
		assert.Equal(t, int64(10), stats.ViewCount)
	})
}

func TestInsertBehavior(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := models.BehaviorRecord{
		ID:         uuid.NewString(),
		UserID:     "u1",
		EventID:    "e1",
		ActionType: models.ActionTypePurchase,
		Metadata:   map[string]any{"source": "feed"},
		CreatedAt:  time.Now(),
	}
	require.NoError(t, db.InsertBehavior(ctx, rec))

	var count int
	var metadata string
	row := db.Conn().QueryRow(`SELECT COUNT(*), MAX(metadata) FROM user_behaviors WHERE user_id = 'u1'`)
	require.NoError(t, row.Scan(&count, &metadata))
	assert.Equal(t, 1, count)
	assert.JSONEq(t, `{"source":"feed"}`, metadata)

	t.Run("nil metadata defaults to empty object", func(t *testing.T) {
		rec2 := rec
		rec2.ID = uuid.NewString()
		rec2.Metadata = nil
		require.NoError(t, db.InsertBehavior(ctx, rec2))

		var raw string
		row := db.Conn().QueryRow(`SELECT metadata FROM user_behaviors WHERE id = ?`, rec2.ID)
		require.NoError(t, row.Scan(&raw))
		assert.JSONEq(t, `{}`, raw)
	})
}

func TestBreakerStorePassthrough(t *testing.T) {
	db := newTestDB(t)
	st := NewBreakerStore(db)
	ctx := context.Background()

	seedTrending(t, db, "e1", 50)

	trending, err := st.GetTrendingEvents(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, trending, 1)

	prefs, err := st.GetUserPreferences(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, prefs.FavoriteCategories)

	stats, err := st.GetEventStats(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, stats)

	require.NoError(t, st.Ping(ctx))
}
