// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/tillmirror/internal/validation"
)

// ConfigError is a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks field constraints and the rules between fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return &ConfigError{Field: verr.Fields[0].Field, Message: verr.Error()}
	}

	if err := c.validateDurations(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateDurations() error {
	checks := []struct {
		field string
		value time.Duration
		min   time.Duration
	}{
		{"store.sweep_interval", c.Store.SweepInterval, time.Minute},
		{"oplog.retention", c.OpLog.Retention, time.Minute},
		{"remote.timeout", c.Remote.Timeout, time.Second},
		{"remote.retry_base_delay", c.Remote.RetryBaseDelay, time.Millisecond},
		{"remote.breaker_timeout", c.Remote.BreakerTimeout, time.Second},
		{"network.probe_interval", c.Network.ProbeInterval, time.Second},
		{"network.probe_timeout", c.Network.ProbeTimeout, 100 * time.Millisecond},
	}
	for _, chk := range checks {
		if chk.value < chk.min {
			return &ConfigError{Field: chk.field, Message: fmt.Sprintf("must be at least %s", chk.min)}
		}
	}

	if c.Network.ProbeTimeout >= c.Network.ProbeInterval {
		return &ConfigError{Field: "network.probe_timeout", Message: "must be shorter than network.probe_interval"}
	}
	if c.Sync.Interval != 0 && c.Sync.Interval < 10*time.Second {
		return &ConfigError{Field: "sync.interval", Message: "must be 0 (disabled) or at least 10s"}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.AuthSecret != "" && len(c.Server.AuthSecret) < 32 {
		return &ConfigError{Field: "server.auth_secret", Message: "must be at least 32 characters"}
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return &ConfigError{Field: "server.rate_limit_window", Message: "must be positive when rate limiting is enabled"}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
