// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

// Package config loads agent configuration with koanf: built-in defaults,
// then an optional YAML file, then environment variables.
//
// Configuration file lookup: CONFIG_PATH, then config.yaml / config.yml in
// the working directory, then /etc/tillmirror/config.yaml.
//
// Environment variables use an explicit mapping (see envTransformFunc);
// unmapped variables are ignored.
package config

import "time"

// Config holds all agent configuration.
type Config struct {
	Store   StoreConfig   `koanf:"store"`
	OpLog   OpLogConfig   `koanf:"oplog"`
	Remote  RemoteConfig  `koanf:"remote"`
	Network NetworkConfig `koanf:"network"`
	Sync    SyncConfig    `koanf:"sync"`
	Session SessionConfig `koanf:"session"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// StoreConfig configures the local Badger store holding mirrors, details,
// snapshots and the pending queue.
type StoreConfig struct {
	Path             string        `koanf:"path" validate:"required"`
	SyncWrites       bool          `koanf:"sync_writes"`
	Compression      bool          `koanf:"compression"`
	MemTableSize     int64         `koanf:"mem_table_size" validate:"min=8388608"`
	ValueLogFileSize int64         `koanf:"value_log_file_size"`
	NumCompactors    int           `koanf:"num_compactors" validate:"min=2"`
	BlockCacheSize   int64         `koanf:"block_cache_size"`
	GCRatio          float64       `koanf:"gc_ratio" validate:"gt=0,lt=1"`
	SweepInterval    time.Duration `koanf:"sweep_interval"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// OpLogConfig configures the operational log database.
type OpLogConfig struct {
	Path string `koanf:"path" validate:"required"`

	// Retention is the TTL of each entry.
	Retention time.Duration `koanf:"retention"`
}

// RemoteConfig configures the backend REST client.
type RemoteConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required,http_url"`
	APIToken       string        `koanf:"api_token"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RateLimit is the client-side request rate in requests per second.
	// Zero disables the limiter.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"gte=0"`

	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
}

// NetworkConfig configures the connectivity probe.
type NetworkConfig struct {
	// ProbeURL defaults to the remote base URL when empty.
	ProbeURL         string        `koanf:"probe_url" validate:"omitempty,http_url"`
	ProbeInterval    time.Duration `koanf:"probe_interval"`
	ProbeTimeout     time.Duration `koanf:"probe_timeout"`
	FailureThreshold int           `koanf:"failure_threshold" validate:"min=1"`
	AssumeOnline     bool          `koanf:"assume_online"`
}

// SyncConfig controls automatic replay of the pending queue.
type SyncConfig struct {
	// OnReconnect replays every entity type when the network comes back.
	OnReconnect bool `koanf:"on_reconnect"`

	// Interval runs a periodic replay pass. Zero disables it.
	Interval time.Duration `koanf:"interval"`
}

// SessionConfig locates the desktop shell's session file.
type SessionConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AuthSecret enables HS256 bearer authentication on /api/v1 when set.
	AuthSecret string `koanf:"auth_secret"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller adds file:line to log entries.
	Caller bool `koanf:"caller"`
}
