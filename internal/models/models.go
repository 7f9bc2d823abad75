// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the domain records shared by the store and the
// realtime subsystem.
package models

import "time"

// Friendship status values. Only accepted edges participate in social
// fan-out and friends-events composition.
const (
	FriendshipStatusPending  = "pending"
	FriendshipStatusAccepted = "accepted"
	FriendshipStatusBlocked  = "blocked"
)

// Behavior action types. ActionType is free-form on the wire; these are the
// values the rest of the system reacts to.
const (
	ActionTypeView     = "view"
	ActionTypePurchase = "purchase"
	ActionTypeShare    = "share"
	ActionTypeFavorite = "favorite"
)

// Event is an event listing as served to clients.
type Event struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	VenueName  string    `json:"venue_name,omitempty"`
	City       string    `json:"city,omitempty"`
	StartsAt   time.Time `json:"starts_at"`
	PriceCents int       `json:"price_cents,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
}

// TrendingEvent is one entry of the global trending list, ordered by
// engagement score descending.
type TrendingEvent struct {
	EventID         string  `json:"event_id"`
	EngagementScore float64 `json:"engagement_score"`
}

// TrendingStats holds the full live statistics row for a single event,
// returned to clients that subscribe to it.
type TrendingStats struct {
	EventID         string    `json:"event_id"`
	EngagementScore float64   `json:"engagement_score"`
	ViewCount       int64     `json:"view_count"`
	PurchaseCount   int64     `json:"purchase_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UserPreferences is a user's stored recommendation preferences.
// A user without a stored row has the zero value (empty categories).
type UserPreferences struct {
	UserID             string   `json:"user_id"`
	FavoriteCategories []string `json:"favorite_categories"`
}

// Friendship is a directed social-graph edge. UserID is the principal side,
// FriendID the friend side; an accepted edge means FriendID's activity is
// visible to UserID.
type Friendship struct {
	UserID    string    `json:"user_id"`
	FriendID  string    `json:"friend_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// BehaviorRecord is a persisted user action (view, purchase, share, ...).
// Records are append-only; the realtime core never mutates or deletes them.
type BehaviorRecord struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	EventID    string         `json:"event_id"`
	ActionType string         `json:"action_type"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}
