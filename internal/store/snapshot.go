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

	"github.com/tomtom215/tillmirror/internal/models"
)

// PutSnapshot stores the whole envelope of a parametrised list query.
func (s *Store) PutSnapshot(ctx context.Context, collection, outlet, query string, env models.Envelope) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.Collection(collection); err != nil {
		return err
	}
	if err := checkSegment("outlet id", outlet); err != nil {
		return err
	}
	if query == "" {
		return fmt.Errorf("%w: empty snapshot query", ErrInvalidKey)
	}

	env.Offline = false
	env.Pending = false
	snap := models.Snapshot{OutletID: outlet, Key: query, Envelope: env, UpdatedAt: time.Now()}
	data, err := encodeRecord(&snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	start := time.Now()
	err = s.update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(collection, outlet, query), data)
	})
	recordStoreOp("put_snapshot", start, err)
	return err
}

// GetSnapshot returns a cached query envelope or ErrNotFound.
func (s *Store) GetSnapshot(ctx context.Context, collection, outlet, query string) (models.Snapshot, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer release()

	if _, err := s.Collection(collection); err != nil {
		return models.Snapshot{}, err
	}
	if err := checkSegment("outlet id", outlet); err != nil {
		return models.Snapshot{}, err
	}

	var snap models.Snapshot
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(collection, outlet, query))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	return snap, err
}
