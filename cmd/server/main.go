// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the Vybz Circle realtime server.
//
// The server pushes personalized event recommendations to connected
// users over WebSocket, refreshes stale connections on a fixed cadence,
// and fans friend activity out to connected friends.
//
// Components start in the following order:
//
//  1. Configuration: layered defaults, config file and environment (koanf v2)
//  2. Database: DuckDB behind a circuit breaker
//  3. Realtime core: hub, composer, router, notifier, scheduler
//  4. NATS (optional): activity bridge, with an embedded server if configured
//  5. HTTP server: health, metrics and the WebSocket upgrade endpoint
//
// All long-running components run under a suture supervision tree and
// the process shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/vybzcircle/realtime/internal/api"
	"github.com/vybzcircle/realtime/internal/config"
	"github.com/vybzcircle/realtime/internal/logging"
	"github.com/vybzcircle/realtime/internal/realtime"
	"github.com/vybzcircle/realtime/internal/store"
	"github.com/vybzcircle/realtime/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("database", cfg.Database.Path).
		Bool("nats", cfg.NATS.Enabled).
		Msg("starting vybz realtime server")

	db, err := store.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("database close failed")
		}
	}()
	st := store.NewBreakerStore(db)

	hub := realtime.NewHub()
	composer := realtime.NewComposer(st, hub, cfg.Realtime.TrendingLimit, cfg.Realtime.FriendsEventsLimit)
	notifier := realtime.NewNotifier(st, hub)
	router := realtime.NewRouter(st, composer, notifier, cfg.Realtime.ActionRefreshDelay)
	scheduler := realtime.NewScheduler(hub, composer, cfg.Realtime.RefreshInterval, cfg.Realtime.StalenessThreshold)

	handler := api.NewHandler(cfg, hub, composer, router, st)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(cfg, handler),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	slogger := slog.New(logging.NewSlogHandler())
	tree := supervisor.NewTree(slogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddRealtimeService(supervisor.NewHubService(hub))
	tree.AddRealtimeService(scheduler)

	if cfg.NATS.Enabled {
		natsURL := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			ns, err := startEmbeddedNATS()
			if err != nil {
				return err
			}
			defer ns.Shutdown()
			natsURL = ns.ClientURL()
		}
		tree.AddRealtimeService(realtime.NewActivityBridge(natsURL, cfg.NATS.ActivitySubject, st, notifier))
	}

	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within timeout")
		}
	}

	logging.Info().Msg("server stopped")
	return nil
}
