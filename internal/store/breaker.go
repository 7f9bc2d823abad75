// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
	"github.com/vybzcircle/realtime/internal/models"
)

// BreakerStore wraps a Store with a circuit breaker so that a struggling
// backend sheds load quickly instead of stacking up slow queries. An open
// breaker surfaces as an ordinary query error: the realtime core logs it
// and abandons that single computation, exactly like any transient read
// failure.
//
// The breaker uses real time for its interval and timeout calculations.
// Unit tests should exercise the wrapped Store directly.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[any]
}

var _ Store = (*BreakerStore)(nil)

// NewBreakerStore wraps the given Store. Breaker configuration:
// opens after a 60% failure rate with at least 10 requests in a 1 minute
// window, allows 3 trial requests in half-open state, and waits 30 seconds
// before attempting recovery.
func NewBreakerStore(inner Store) *BreakerStore {
	const name = "store"

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("store circuit breaker opening")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerStore{inner: inner, cb: cb}
}

// execute runs fn through the circuit breaker, preserving its result type.
func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (b *BreakerStore) GetUserPreferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	return execute(b.cb, func() (models.UserPreferences, error) {
		return b.inner.GetUserPreferences(ctx, userID)
	})
}

func (b *BreakerStore) GetTrendingEvents(ctx context.Context, limit int) ([]models.TrendingEvent, error) {
	return execute(b.cb, func() ([]models.TrendingEvent, error) {
		return b.inner.GetTrendingEvents(ctx, limit)
	})
}

func (b *BreakerStore) GetAcceptedFriendIDs(ctx context.Context, userID string) ([]string, error) {
	return execute(b.cb, func() ([]string, error) {
		return b.inner.GetAcceptedFriendIDs(ctx, userID)
	})
}

func (b *BreakerStore) GetFriendPrincipalIDs(ctx context.Context, userID string) ([]string, error) {
	return execute(b.cb, func() ([]string, error) {
		return b.inner.GetFriendPrincipalIDs(ctx, userID)
	})
}

func (b *BreakerStore) GetFriendsUpcomingPurchases(ctx context.Context, friendIDs []string, after time.Time, limit int) ([]models.Event, error) {
	return execute(b.cb, func() ([]models.Event, error) {
		return b.inner.GetFriendsUpcomingPurchases(ctx, friendIDs, after, limit)
	})
}

func (b *BreakerStore) GetEventStats(ctx context.Context, eventID string) (*models.TrendingStats, error) {
	return execute(b.cb, func() (*models.TrendingStats, error) {
		return b.inner.GetEventStats(ctx, eventID)
	})
}

func (b *BreakerStore) InsertBehavior(ctx context.Context, rec models.BehaviorRecord) error {
	_, err := execute(b.cb, func() (struct{}, error) {
		return struct{}{}, b.inner.InsertBehavior(ctx, rec)
	})
	return err
}

// Ping bypasses the breaker: health checks should report the backend's
// actual state even while the breaker is open.
func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

func (b *BreakerStore) Close() error {
	return b.inner.Close()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
