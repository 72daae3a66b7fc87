// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import "time"

// Config holds BadgerDB tuning and maintenance settings for a Store.
type Config struct {
	// Path is the BadgerDB directory.
	Path string

	// SyncWrites fsyncs every commit. Pending writes are the only copy of a
	// sale made offline, so this defaults to true.
	SyncWrites bool

	// Compression enables Snappy for values.
	Compression bool

	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int
	BlockCacheSize   int64

	// GCRatio is passed to RunValueLogGC.
	GCRatio float64

	// SweepInterval is how often the Sweeper removes orphaned generations
	// and runs value-log GC.
	SweepInterval time.Duration

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration
}

// DefaultConfig returns settings sized for a single till.
func DefaultConfig() Config {
	return Config{
		Path:             "data/store",
		SyncWrites:       true,
		Compression:      true,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		BlockCacheSize:   64 * 1024 * 1024,
		GCRatio:          0.5,
		SweepInterval:    30 * time.Minute,
		CloseTimeout:     30 * time.Second,
	}
}

// MinMemTableSize is the smallest memtable Badger opens with its default
// value threshold: a batch is capped at 15% of the memtable.
const MinMemTableSize = 8 << 20

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "store path is required"}
	}
	if c.MemTableSize < MinMemTableSize {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 8MB (BadgerDB batch size must exceed the 1MB value threshold)"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	if c.SweepInterval < time.Minute {
		return &ConfigError{Field: "SweepInterval", Message: "must be at least 1 minute"}
	}
	return nil
}

// ConfigError is a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "store config error: " + e.Field + ": " + e.Message
}
