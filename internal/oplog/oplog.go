// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

// Package oplog is the agent's operational log: a small Badger database,
// separate from the cache store, recording offline reads, queued writes,
// sync passes, evictions and network transitions. Entries expire after the
// configured retention. The log is not cached data and survives a full
// cache wipe.
package oplog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tillmirror/internal/logging"
)

// Kind classifies an entry.
type Kind string

const (
	KindFetchOffline  Kind = "fetch_offline"  // read served from cache while offline
	KindFetchFallback Kind = "fetch_fallback" // read served from cache after a remote failure
	KindWriteQueued   Kind = "write_queued"
	KindSyncPass      Kind = "sync_pass"
	KindEvictOutlet   Kind = "evict_outlet"
	KindClearAll      Kind = "clear_all"
	KindNetwork       Kind = "network"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("oplog is closed")

// Entry is one log line.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Kind       Kind      `json:"kind"`
	Collection string    `json:"collection,omitempty"`
	EntityType string    `json:"entity_type,omitempty"`
	OutletID   string    `json:"outlet_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	Synced     int       `json:"synced,omitempty"`
	Failed     int       `json:"failed,omitempty"`
}

// Config configures the log database.
type Config struct {
	Path      string
	Retention time.Duration

	// InMemory runs without a directory; used by tests.
	InMemory bool
}

var entryPrefix = []byte("entry/")

// Log is safe for concurrent use.
type Log struct {
	db        *badger.DB
	retention time.Duration

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the log database.
func Open(cfg Config) (*Log, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("oplog path is required")
	}
	if cfg.Retention <= 0 {
		return nil, errors.New("oplog retention must be positive")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// Badger caps a batch at 15% of the memtable and refuses to open when
	// that is below ValueThreshold (1MB by default).
	opts.MemTableSize = 16 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open oplog: %w", err)
	}
	logging.Info().Str("path", cfg.Path).Dur("retention", cfg.Retention).Msg("Operational log opened")
	return &Log{db: db, retention: cfg.Retention}, nil
}

// entryKey orders entries by time; the id breaks ties.
func entryKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%016x/%s", entryPrefix, uint64(at.UnixNano()), id))
}

// Append writes e with the configured TTL. ID and Time are filled in when
// empty.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode oplog entry: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(entryKey(e.Time, e.ID), data).WithTTL(l.retention))
	})
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, limit)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the greatest key <= seek.
		seek := append(bytes.Clone(entryPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(entryPrefix) && len(entries) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read oplog: %w", err)
	}
	return entries, nil
}

// Record appends e and logs instead of returning a failure. Callers on hot
// paths use it; losing an operational log line never fails a user action.
func (l *Log) Record(ctx context.Context, e Entry) {
	if err := l.Append(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("kind", string(e.Kind)).Msg("Failed to append operational log entry")
	}
}

// IsOpen reports whether the log accepts entries.
func (l *Log) IsOpen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.closed
}

// Close closes the database. Further calls return ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
