// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/vybzcircle/realtime/internal/logging"
)

// startEmbeddedNATS runs an in-process NATS server for single-instance
// deployments that have no external broker. The activity bridge connects
// to it over the loopback interface like any other client.
func startEmbeddedNATS() (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "vybz-realtime",
		Host:       "127.0.0.1",
		Port:       -1,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}

	logging.Info().Str("url", ns.ClientURL()).Msg("embedded nats server started")
	return ns, nil
}
