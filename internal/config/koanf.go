// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations, in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tillmirror/config.yaml",
	"/etc/tillmirror/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:             "data/store",
			SyncWrites:       true,
			Compression:      true,
			MemTableSize:     16 << 20,
			ValueLogFileSize: 64 << 20,
			NumCompactors:    2,
			BlockCacheSize:   64 << 20,
			GCRatio:          0.5,
			SweepInterval:    30 * time.Minute,
			CloseTimeout:     30 * time.Second,
		},
		OpLog: OpLogConfig{
			Path:      "data/oplog",
			Retention: 7 * 24 * time.Hour,
		},
		Remote: RemoteConfig{
			BaseURL:             "",
			Timeout:             30 * time.Second,
			MaxRetries:          5,
			RetryBaseDelay:      time.Second,
			RateLimit:           10,
			RateBurst:           20,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
		},
		Network: NetworkConfig{
			ProbeInterval:    10 * time.Second,
			ProbeTimeout:     3 * time.Second,
			FailureThreshold: 2,
			AssumeOnline:     true,
		},
		Sync: SyncConfig{
			OnReconnect: true,
			Interval:    0, // manual model: the shell asks for a sync
		},
		Session: SessionConfig{
			Path: "data/session.json",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            7431,
			Timeout:         60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration from defaults, the optional config file and the
// environment, in increasing priority, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// REMOTE_BASE_URL -> remote.base_url, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Network.ProbeURL == "" {
		cfg.Network.ProbeURL = cfg.Remote.BaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
// Values from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Store
	"store_path":           "store.path",
	"store_sync_writes":    "store.sync_writes",
	"store_compression":    "store.compression",
	"store_gc_ratio":       "store.gc_ratio",
	"store_sweep_interval": "store.sweep_interval",

	// Operational log
	"oplog_path":      "oplog.path",
	"oplog_retention": "oplog.retention",

	// Remote backend
	"remote_base_url":              "remote.base_url",
	"remote_api_token":             "remote.api_token",
	"remote_timeout":               "remote.timeout",
	"remote_max_retries":           "remote.max_retries",
	"remote_retry_base_delay":      "remote.retry_base_delay",
	"remote_rate_limit":            "remote.rate_limit",
	"remote_rate_burst":            "remote.rate_burst",
	"remote_breaker_timeout":       "remote.breaker_timeout",
	"remote_breaker_failure_ratio": "remote.breaker_failure_ratio",

	// Network probe
	"network_probe_url":         "network.probe_url",
	"network_probe_interval":    "network.probe_interval",
	"network_probe_timeout":     "network.probe_timeout",
	"network_failure_threshold": "network.failure_threshold",
	"network_assume_online":     "network.assume_online",

	// Sync
	"sync_on_reconnect": "sync.on_reconnect",
	"sync_interval":     "sync.interval",

	// Session
	"session_path": "session.path",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"api_auth_secret":       "server.auth_secret",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
