// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/models"
)

// sequenceBandwidth is how many ids a badger sequence leases per disk write.
const sequenceBandwidth = 64

// conflictRetries bounds retries of read-modify-write transactions that
// lose an optimistic concurrency race.
const conflictRetries = 3

// Store is the BadgerDB-backed local store.
//
// mu guards the open/closed state. Regular operations hold it shared for
// their whole duration; Close and Reset take it exclusively so they never
// interleave with a half-finished mirror replacement.
type Store struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool

	pendingSeq    *badger.Sequence
	generationSeq *badger.Sequence

	// pairLocks serialises replacements, outlet deletes and sweeps of one
	// (collection, outlet) mirror. Key: collection + "/" + outlet.
	pairLocks sync.Map

	schemaVersion uint64
	collections   map[string]models.Collection
}

// Open opens (or creates) the store at cfg.Path and applies pending schema
// migrations.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	return open(cfg, SchemaVersion)
}

// open is Open with an explicit target schema version.
func open(cfg Config, targetVersion uint64) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.BlockCacheSize > 0 {
		opts.BlockCacheSize = cfg.BlockCacheSize
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{db: db, cfg: cfg}

	if err := s.migrate(targetVersion); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.acquireSequences(); err != nil {
		_ = db.Close()
		return nil, err
	}

	byType, err := s.countPendingByType()
	if err != nil {
		s.releaseSequences()
		_ = db.Close()
		return nil, fmt.Errorf("count pending: %w", err)
	}
	total := 0
	for entityType, n := range byType {
		setPendingGauge(entityType, n)
		total += n
	}

	logging.Info().
		Str("path", cfg.Path).
		Uint64("schema_version", s.schemaVersion).
		Int("collections", len(s.collections)).
		Int("pending", total).
		Msg("Local store opened")

	return s, nil
}

func (s *Store) acquireSequences() error {
	var err error
	if s.pendingSeq, err = s.db.GetSequence([]byte(keyPendingSeq), sequenceBandwidth); err != nil {
		return fmt.Errorf("pending sequence: %w", err)
	}
	if s.generationSeq, err = s.db.GetSequence([]byte(keyGenerationSeq), sequenceBandwidth); err != nil {
		_ = s.pendingSeq.Release()
		return fmt.Errorf("generation sequence: %w", err)
	}
	return nil
}

func (s *Store) releaseSequences() {
	if s.pendingSeq != nil {
		if err := s.pendingSeq.Release(); err != nil {
			logging.Warn().Err(err).Msg("Failed to release pending sequence")
		}
	}
	if s.generationSeq != nil {
		if err := s.generationSeq.Release(); err != nil {
			logging.Warn().Err(err).Msg("Failed to release generation sequence")
		}
	}
}

// Close releases sequences and closes the database, giving up after
// CloseTimeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.releaseSequences()
	timeout := s.cfg.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Str("path", s.cfg.Path).Msg("Local store closed")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// SchemaVersion returns the schema version the store was migrated to.
func (s *Store) SchemaVersion() uint64 {
	return s.schemaVersion
}

// Collections returns the registered collections in catalog order.
func (s *Store) Collections() []models.Collection {
	out := make([]models.Collection, 0, len(s.collections))
	for _, c := range models.Catalog {
		if reg, ok := s.collections[c.Name]; ok {
			out = append(out, reg)
		}
	}
	return out
}

// Collection returns the registry entry for name.
func (s *Store) Collection(name string) (models.Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return models.Collection{}, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// acquire takes the shared lock and fails fast when the store is closed or
// the context is done. Callers must call the returned release func.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	return s.mu.RUnlock, nil
}

func (s *Store) pairLock(collection, outlet string) *sync.Mutex {
	l, _ := s.pairLocks.LoadOrStore(collection+keySeparator+outlet, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// encodeRecord encodes a stored value without HTML escaping, so backend
// payloads come back byte for byte.
func encodeRecord(v interface{}) ([]byte, error) {
	return json.MarshalNoEscape(v)
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// collectKeys returns copies of every key under prefix, without values.
func (s *Store) collectKeys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// deleteKeys removes keys in a write batch. The batch is not atomic; it is
// only used for data that is already unreachable or being evicted.
func (s *Store) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// deletePrefix removes every key under prefix and returns how many it removed.
func (s *Store) deletePrefix(prefix []byte) (int, error) {
	keys, err := s.collectKeys(prefix)
	if err != nil {
		return 0, err
	}
	if err := s.deleteKeys(keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// RunGC runs value-log garbage collection until there is nothing left to
// rewrite.
func (s *Store) RunGC(ctx context.Context) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	defer func() {
		recordGCRun(time.Since(start))
	}()

	for {
		err := s.db.RunValueLogGC(s.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
