// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tillmirror/internal/models"
)

// entityTypeRegistered reports whether a registered collection uses entityType.
func (s *Store) entityTypeRegistered(entityType string) bool {
	for _, c := range s.collections {
		if c.EntityType == entityType {
			return true
		}
	}
	return false
}

// AppendPending adds m to the tail of its entity type's queue. ID, Seq and
// CreatedAt are assigned here; Synced is always stored as false.
func (s *Store) AppendPending(ctx context.Context, m *models.PendingMutation) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := checkSegment("entity type", m.EntityType); err != nil {
		return err
	}
	if !s.entityTypeRegistered(m.EntityType) {
		return fmt.Errorf("%w: entity type %q", ErrUnknownCollection, m.EntityType)
	}
	if err := checkSegment("outlet id", m.OutletID); err != nil {
		return err
	}
	if !m.Op.Valid() {
		return fmt.Errorf("invalid pending operation %q", m.Op)
	}

	seq, err := s.pendingSeq.Next()
	if err != nil {
		return fmt.Errorf("next pending sequence: %w", err)
	}
	m.Seq = seq + 1
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.Synced = false

	data, err := encodeRecord(m)
	if err != nil {
		return fmt.Errorf("encode pending mutation: %w", err)
	}

	start := time.Now()
	err = s.update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(m.EntityType, m.Seq), data)
	})
	recordStoreOp("append_pending", start, err)
	if err != nil {
		return fmt.Errorf("append pending %s: %w", m.EntityType, err)
	}
	addPendingGauge(m.EntityType, 1)
	return nil
}

// ListPending returns the unsynced mutations of entityType in insertion order.
func (s *Store) ListPending(ctx context.Context, entityType string) ([]models.PendingMutation, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := checkSegment("entity type", entityType); err != nil {
		return nil, err
	}

	start := time.Now()
	var out []models.PendingMutation
	err = s.db.View(func(txn *badger.Txn) error {
		prefix := pendingTypePrefix(entityType)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m models.PendingMutation
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if !m.Synced {
				out = append(out, m)
			}
		}
		return nil
	})
	recordStoreOp("list_pending", start, err)
	return out, err
}

// DeletePending removes an acknowledged mutation. ErrNotFound means another
// caller already removed it.
func (s *Store) DeletePending(ctx context.Context, m *models.PendingMutation) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	key := pendingKey(m.EntityType, m.Seq)
	start := time.Now()
	err = s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	recordStoreOp("delete_pending", start, err)
	if err != nil {
		return err
	}
	addPendingGauge(m.EntityType, -1)
	return nil
}

// CountPending returns the number of unsynced mutations across all types.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	byType, err := s.CountPendingByType(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range byType {
		total += n
	}
	return total, nil
}

// CountPendingByType returns unsynced mutation counts keyed by entity type.
func (s *Store) CountPendingByType(ctx context.Context) (map[string]int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.countPendingByType()
}

func (s *Store) countPendingByType() (map[string]int, error) {
	keys, err := s.collectKeys([]byte(prefixPending))
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, k := range keys {
		counts[pendingTypeFromKey(k)]++
	}
	return counts, nil
}
