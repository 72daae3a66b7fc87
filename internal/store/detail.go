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

func detailKeyFor(c models.Collection, outlet, entityID string) []byte {
	if c.DetailScope == models.DetailOutlet {
		return detailOutletKey(c.Name, outlet, entityID)
	}
	return detailGlobalKey(c.Name, entityID)
}

func (s *Store) checkDetailArgs(collection, outlet, entityID string) (models.Collection, error) {
	c, err := s.Collection(collection)
	if err != nil {
		return c, err
	}
	if err := checkSegment("outlet id", outlet); err != nil {
		return c, err
	}
	return c, checkSegment("entity id", entityID)
}

// PutDetail stores the deep record for one entity. For globally scoped
// collections the outlet only travels in the value.
func (s *Store) PutDetail(ctx context.Context, collection string, rec models.DetailRecord) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	c, err := s.checkDetailArgs(collection, rec.OutletID, rec.EntityID)
	if err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	data, err := encodeRecord(&rec)
	if err != nil {
		return fmt.Errorf("encode detail %s: %w", rec.EntityID, err)
	}

	start := time.Now()
	err = s.update(func(txn *badger.Txn) error {
		return txn.Set(detailKeyFor(c, rec.OutletID, rec.EntityID), data)
	})
	recordStoreOp("put_detail", start, err)
	return err
}

// GetDetail returns the cached detail record or ErrNotFound. For globally
// scoped collections a record cached under another outlet is returned.
func (s *Store) GetDetail(ctx context.Context, collection, outlet, entityID string) (models.DetailRecord, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return models.DetailRecord{}, err
	}
	defer release()

	c, err := s.checkDetailArgs(collection, outlet, entityID)
	if err != nil {
		return models.DetailRecord{}, err
	}

	var rec models.DetailRecord
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(detailKeyFor(c, outlet, entityID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// DeleteDetail removes a detail record. Missing records are not an error.
func (s *Store) DeleteDetail(ctx context.Context, collection, outlet, entityID string) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	c, err := s.checkDetailArgs(collection, outlet, entityID)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.update(func(txn *badger.Txn) error {
		return txn.Delete(detailKeyFor(c, outlet, entityID))
	})
	recordStoreOp("delete_detail", start, err)
	return err
}

// deleteDetailsForOutlet drops every detail record cached for outlet. Global
// keys are matched on the outlet stored in the value.
func (s *Store) deleteDetailsForOutlet(c models.Collection, outlet string) (int, error) {
	if c.DetailScope == models.DetailOutlet {
		return s.deletePrefix(detailOutletPrefix(c.Name, outlet))
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := detailCollectionPrefix(c.Name)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var owner struct {
				OutletID string `json:"outlet_id"`
			}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &owner)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if owner.OutletID == outlet {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := s.deleteKeys(keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}
