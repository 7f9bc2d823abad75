// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/vybzcircle/realtime/internal/config"
	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
	"github.com/vybzcircle/realtime/internal/models"
)

// DB is the DuckDB-backed Store implementation.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// Open creates a DuckDB connection and initializes the schema.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := cfg.Path
	params := []string{fmt.Sprintf("threads=%d", numThreads)}
	if cfg.MaxMemory != "" {
		params = append(params, "max_memory="+cfg.MaxMemory)
	}
	connStr += "?" + strings.Join(params, "&")

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("database opened")
	return db, nil
}

// initSchema creates the collections used by the realtime core if absent.
// favorite_categories and metadata are stored as JSON text.
func (d *DB) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR PRIMARY KEY,
			display_name VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id VARCHAR PRIMARY KEY,
			title VARCHAR NOT NULL,
			category VARCHAR NOT NULL,
			venue_name VARCHAR,
			city VARCHAR,
			starts_at TIMESTAMP NOT NULL,
			price_cents INTEGER NOT NULL DEFAULT 0,
			image_url VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id VARCHAR PRIMARY KEY,
			favorite_categories VARCHAR NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trending_events (
			event_id VARCHAR PRIMARY KEY,
			engagement_score DOUBLE NOT NULL DEFAULT 0,
			view_count BIGINT NOT NULL DEFAULT 0,
			purchase_count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS friendships (
			user_id VARCHAR NOT NULL,
			friend_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, friend_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_behaviors (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			event_id VARCHAR NOT NULL,
			action_type VARCHAR NOT NULL,
			metadata VARCHAR NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// GetUserPreferences implements Store. A missing row yields the zero value.
func (d *DB) GetUserPreferences(ctx context.Context, userID string) (prefs models.UserPreferences, err error) {
	defer metrics.ObserveStoreQuery("get_user_preferences", time.Now(), &err)

	prefs = models.UserPreferences{UserID: userID, FavoriteCategories: []string{}}

	var raw string
	row := d.conn.QueryRowContext(ctx,
		`SELECT favorite_categories FROM user_preferences WHERE user_id = ?`, userID)
	if scanErr := row.Scan(&raw); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return prefs, nil
		}
		err = fmt.Errorf("query user preferences: %w", scanErr)
		return prefs, err
	}

	var categories []string
	if unmarshalErr := json.Unmarshal([]byte(raw), &categories); unmarshalErr != nil {
		err = fmt.Errorf("decode favorite categories for %s: %w", userID, unmarshalErr)
		return models.UserPreferences{UserID: userID, FavoriteCategories: []string{}}, err
	}
	if categories == nil {
		categories = []string{}
	}

	prefs.FavoriteCategories = categories
	return prefs, nil
}

// GetTrendingEvents implements Store.
func (d *DB) GetTrendingEvents(ctx context.Context, limit int) (trending []models.TrendingEvent, err error) {
	defer metrics.ObserveStoreQuery("get_trending_events", time.Now(), &err)

	rows, err := d.conn.QueryContext(ctx,
		`SELECT event_id, engagement_score
		 FROM trending_events
		 ORDER BY engagement_score DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending events: %w", err)
	}
	defer rows.Close()

	trending = []models.TrendingEvent{}
	for rows.Next() {
		var te models.TrendingEvent
		if err = rows.Scan(&te.EventID, &te.EngagementScore); err != nil {
			return nil, fmt.Errorf("scan trending event: %w", err)
		}
		trending = append(trending, te)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trending events: %w", err)
	}
	return trending, nil
}

// GetAcceptedFriendIDs implements Store.
func (d *DB) GetAcceptedFriendIDs(ctx context.Context, userID string) ([]string, error) {
	return d.queryFriendColumn(ctx, "get_accepted_friend_ids",
		`SELECT friend_id FROM friendships WHERE user_id = ? AND status = ?`, userID)
}

// GetFriendPrincipalIDs implements Store.
func (d *DB) GetFriendPrincipalIDs(ctx context.Context, userID string) ([]string, error) {
	return d.queryFriendColumn(ctx, "get_friend_principal_ids",
		`SELECT user_id FROM friendships WHERE friend_id = ? AND status = ?`, userID)
}

func (d *DB) queryFriendColumn(ctx context.Context, operation, query, userID string) (ids []string, err error) {
	defer metrics.ObserveStoreQuery(operation, time.Now(), &err)

	rows, err := d.conn.QueryContext(ctx, query, userID, models.FriendshipStatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	ids = []string{}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}
	return ids, nil
}

// GetFriendsUpcomingPurchases implements Store.
func (d *DB) GetFriendsUpcomingPurchases(ctx context.Context, friendIDs []string, after time.Time, limit int) (events []models.Event, err error) {
	defer metrics.ObserveStoreQuery("get_friends_upcoming_purchases", time.Now(), &err)

	events = []models.Event{}
	if len(friendIDs) == 0 {
		return events, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(friendIDs)), ",")
	query := fmt.Sprintf(
		`SELECT e.id, e.title, e.category, COALESCE(e.venue_name, ''), COALESCE(e.city, ''),
		        e.starts_at, e.price_cents, COALESCE(e.image_url, '')
		 FROM user_behaviors b
		 JOIN events e ON e.id = b.event_id
		 WHERE b.user_id IN (%s)
		   AND b.action_type = ?
		   AND e.starts_at >= ?
		 ORDER BY b.created_at DESC
		 LIMIT ?`, placeholders)

	args := make([]any, 0, len(friendIDs)+3)
	for _, id := range friendIDs {
		args = append(args, id)
	}
	args = append(args, models.ActionTypePurchase, after, limit)

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query friends purchases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev models.Event
		if err = rows.Scan(&ev.ID, &ev.Title, &ev.Category, &ev.VenueName, &ev.City,
			&ev.StartsAt, &ev.PriceCents, &ev.ImageURL); err != nil {
			return nil, fmt.Errorf("scan friend event: %w", err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend events: %w", err)
	}
	return events, nil
}

// GetEventStats implements Store. A missing row yields (nil, nil).
func (d *DB) GetEventStats(ctx context.Context, eventID string) (stats *models.TrendingStats, err error) {
	defer metrics.ObserveStoreQuery("get_event_stats", time.Now(), &err)

	row := d.conn.QueryRowContext(ctx,
		`SELECT event_id, engagement_score, view_count, purchase_count, updated_at
		 FROM trending_events WHERE event_id = ?`, eventID)

	var ts models.TrendingStats
	if scanErr := row.Scan(&ts.EventID, &ts.EngagementScore, &ts.ViewCount, &ts.PurchaseCount, &ts.UpdatedAt); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, nil
		}
		err = fmt.Errorf("query event stats: %w", scanErr)
		return nil, err
	}
	return &ts, nil
}

// InsertBehavior implements Store.
func (d *DB) InsertBehavior(ctx context.Context, rec models.BehaviorRecord) (err error) {
	defer metrics.ObserveStoreQuery("insert_behavior", time.Now(), &err)

	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode behavior metadata: %w", err)
	}

	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO user_behaviors (id, user_id, event_id, action_type, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.EventID, rec.ActionType, string(raw), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert behavior: %w", err)
	}
	return nil
}

// Ping implements Store.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Close implements Store.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn exposes the underlying connection for seeding and migrations.
func (d *DB) Conn() *sql.DB {
	return d.conn
}
