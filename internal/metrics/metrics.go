// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics provides Prometheus instrumentation for the realtime
// service: connection lifecycle, recommendation pushes, store query
// performance, and circuit breaker state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Current number of open WebSocket connections",
		},
	)

	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_admissions_total",
			Help: "Total number of WebSocket admission attempts",
		},
		[]string{"result"}, // "admitted", "replaced", "rejected"
	)

	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_inbound_messages_total",
			Help: "Total number of inbound client messages by type",
		},
		[]string{"type"},
	)

	DroppedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_dropped_messages_total",
			Help: "Total number of outbound messages dropped (full send buffer or closed connection)",
		},
		[]string{"reason"}, // "buffer_full", "closed"
	)

	// Recommendation metrics
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_pushes_total",
			Help: "Total number of outbound pushes by message type",
		},
		[]string{"type"},
	)

	ComposeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_compose_duration_seconds",
			Help:    "Duration of recommendation payload composition including store reads",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulerRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_refreshes_total",
			Help: "Total number of stale-connection refreshes triggered by the periodic scheduler",
		},
	)

	FriendNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "friend_notifications_total",
			Help: "Total number of friend_activity messages delivered to open connections",
		},
	)

	// Store metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of store query errors",
		},
		[]string{"operation"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Activity bridge metrics
	BridgeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_bridge_events_total",
			Help: "Total number of activity events consumed from NATS",
		},
		[]string{"result"}, // "processed", "malformed", "store_error"
	)
)

// ObserveStoreQuery records the duration of a store query and counts the
// error if any. Intended for use with defer:
//
//	defer metrics.ObserveStoreQuery("get_trending_events", time.Now(), &err)
func ObserveStoreQuery(operation string, start time.Time, err *error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil && *err != nil {
		StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}
