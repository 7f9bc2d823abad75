// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package realtime implements the live recommendation push core: a
// per-user connection registry (Hub), the recommendation composer, the
// inbound message router, the periodic stale-connection refresh scheduler,
// the social activity notifier, and the NATS activity bridge.
//
// One Hub is instantiated per server process and passed by handle to the
// composer, router, scheduler and notifier. All send paths re-check that
// the target connection is still open immediately before writing: the
// registry may change between a store read and the subsequent send.
//
// Outbound delivery is best-effort. Sends go through a bounded per-client
// queue and messages are dropped with a warning when the queue is full;
// there is no retry and no persistence of live messages.
package realtime
