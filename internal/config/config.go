// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides layered configuration for the realtime service
// using Koanf v2: built-in defaults, then an optional YAML file, then
// environment variables (VYBZ_ prefix).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the realtime service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Realtime RealtimeConfig `koanf:"realtime"`
	NATS     NATSConfig     `koanf:"nats"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path. ":memory:" runs fully in-memory.
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// RealtimeConfig holds the tuning knobs of the recommendation push core.
type RealtimeConfig struct {
	// RefreshInterval is the periodic scheduler tick.
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`

	// StalenessThreshold is the maximum idle duration before the scheduler
	// proactively refreshes a connection.
	StalenessThreshold time.Duration `koanf:"staleness_threshold" validate:"gt=0"`

	// ActionRefreshDelay is how long to wait after a track_action write
	// before recomputing recommendations. Batches rapid repeated actions
	// into a single refresh.
	ActionRefreshDelay time.Duration `koanf:"action_refresh_delay" validate:"gte=0"`

	// TrendingLimit caps the trending list in each payload.
	TrendingLimit int `koanf:"trending_limit" validate:"gt=0"`

	// FriendsEventsLimit caps the friends' upcoming events list.
	FriendsEventsLimit int `koanf:"friends_events_limit" validate:"gt=0"`

	// SendBufferSize is the per-connection outbound queue length.
	SendBufferSize int `koanf:"send_buffer_size" validate:"gt=0"`

	// InboundRatePerSec and InboundBurst bound inbound message handling
	// per connection. Frames over the limit are dropped with a warning.
	InboundRatePerSec float64 `koanf:"inbound_rate_per_sec" validate:"gt=0"`
	InboundBurst      int     `koanf:"inbound_burst" validate:"gt=0"`
}

// NATSConfig holds the optional activity bridge settings.
type NATSConfig struct {
	Enabled         bool   `koanf:"enabled"`
	URL             string `koanf:"url"`
	EmbeddedServer  bool   `koanf:"embedded_server"`
	ActivitySubject string `koanf:"activity_subject"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/vybz.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Realtime: RealtimeConfig{
			RefreshInterval:    time.Minute,
			StalenessThreshold: 4 * time.Minute,
			ActionRefreshDelay: time.Second,
			TrendingLimit:      5,
			FriendsEventsLimit: 5,
			SendBufferSize:     256,
			InboundRatePerSec:  20,
			InboundBurst:       40,
		},
		NATS: NATSConfig{
			Enabled:         false,
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  false,
			ActivitySubject: "activity.>",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The scheduler cannot refresh connections it never sees as stale.
	if c.Realtime.StalenessThreshold < c.Realtime.RefreshInterval {
		return fmt.Errorf("realtime.staleness_threshold (%s) must be >= realtime.refresh_interval (%s)",
			c.Realtime.StalenessThreshold, c.Realtime.RefreshInterval)
	}

	if c.NATS.Enabled && c.NATS.ActivitySubject == "" {
		return fmt.Errorf("nats.activity_subject is required when nats.enabled is true")
	}

	return nil
}

// Addr returns the host:port listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
