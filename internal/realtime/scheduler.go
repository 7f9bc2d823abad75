// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"time"

	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/metrics"
)

// Scheduler periodically refreshes connections whose recommendations
// have gone stale. Every tick it snapshots the registry, selects clients
// whose last update is older than the staleness threshold, and
// recomposes for each in deterministic user-id order. Clients that
// recently received a push, for any reason, are skipped.
type Scheduler struct {
	hub      *Hub
	composer *Composer

	interval  time.Duration
	staleness time.Duration
}

// NewScheduler builds a refresh scheduler. The staleness threshold must
// be at least the tick interval; config validation enforces this.
func NewScheduler(hub *Hub, composer *Composer, interval, staleness time.Duration) *Scheduler {
	return &Scheduler{
		hub:       hub,
		composer:  composer,
		interval:  interval,
		staleness: staleness,
	}
}

// Serve runs the refresh loop until the context is canceled. Implements
// suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", s.interval).
		Dur("staleness", s.staleness).
		Msg("refresh scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("refresh scheduler stopped")
			return ctx.Err()

		case <-ticker.C:
			s.refreshStale(ctx)
		}
	}
}

// refreshStale recomposes for every stale connection. One failed
// composition does not stop the sweep.
func (s *Scheduler) refreshStale(ctx context.Context) {
	stale := s.hub.StaleUserIDs(s.staleness)
	if len(stale) == 0 {
		return
	}

	logging.Debug().Int("stale_clients", len(stale)).Msg("refreshing stale clients")

	for _, userID := range stale {
		if ctx.Err() != nil {
			return
		}
		if err := s.composer.Compose(ctx, userID); err == nil {
			metrics.SchedulerRefreshes.Inc()
		}
	}
}

// String identifies the service in supervisor logs.
func (s *Scheduler) String() string {
	return "refresh-scheduler"
}
