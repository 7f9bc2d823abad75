// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"time"

	"github.com/vybzcircle/realtime/internal/models"
)

// Inbound message types.
const (
	MessageTypeTrackAction    = "track_action"
	MessageTypeRequestUpdate  = "request_update"
	MessageTypeSubscribeEvent = "subscribe_event"
)

// Outbound message types.
const (
	MessageTypeRecommendations = "recommendations_update"
	MessageTypeEventStats      = "event_stats"
	MessageTypeFriendActivity  = "friend_activity"
)

// InboundMessage is a client-to-server frame. Type selects the handler;
// the remaining fields are type-specific and ignored otherwise.
type InboundMessage struct {
	Type       string         `json:"type"`
	EventID    string         `json:"eventId"`
	ActionType string         `json:"actionType"`
	Metadata   map[string]any `json:"metadata"`
}

// RecommendationData is the data block of a recommendations_update.
// Trending and FriendsEvents are always non-nil: absence is an empty
// sequence, not null.
type RecommendationData struct {
	Trending      []models.TrendingEvent `json:"trending"`
	FriendsEvents []models.Event         `json:"friendsEvents"`
	Preferences   []string               `json:"preferences"`
}

// RecommendationsUpdate is the personalized payload pushed to one client.
// Built fresh on every composition, never mutated after construction.
type RecommendationsUpdate struct {
	Type      string             `json:"type"`
	Timestamp string             `json:"timestamp"`
	Data      RecommendationData `json:"data"`
}

// NewRecommendationsUpdate stamps a payload with the emission time.
func NewRecommendationsUpdate(data RecommendationData, at time.Time) RecommendationsUpdate {
	return RecommendationsUpdate{
		Type:      MessageTypeRecommendations,
		Timestamp: at.UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// EventStatsMessage is the reply to a subscribe_event request. Stats is
// null when the event has no trending statistics row.
type EventStatsMessage struct {
	Type    string                `json:"type"`
	EventID string                `json:"eventId"`
	Stats   *models.TrendingStats `json:"stats"`
}

// FriendActivityMessage notifies a user that one of their accepted
// friends performed an action.
type FriendActivityMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Action    any    `json:"action"`
	Timestamp string `json:"timestamp"`
}

// NewFriendActivityMessage builds a friend_activity notification.
func NewFriendActivityMessage(userID string, action any, at time.Time) FriendActivityMessage {
	return FriendActivityMessage{
		Type:      MessageTypeFriendActivity,
		UserID:    userID,
		Action:    action,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// messageType reports the wire type of an outbound message for metrics.
func messageType(msg any) string {
	switch m := msg.(type) {
	case RecommendationsUpdate:
		return m.Type
	case EventStatsMessage:
		return m.Type
	case FriendActivityMessage:
		return m.Type
	default:
		return "unknown"
	}
}
