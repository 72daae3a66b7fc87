// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/models"
)

// SchemaVersion is the schema this build writes.
const SchemaVersion uint64 = 2

// migration is one additive schema step. apply runs inside the transaction
// that also bumps meta/schema_version.
type migration struct {
	version uint64
	name    string
	apply   func(txn *badger.Txn) error
}

var migrations = []migration{
	{version: 1, name: "register base collections", apply: registerCollectionsAddedIn(1)},
	{version: 2, name: "register front-office check-ins", apply: registerCollectionsAddedIn(2)},
}

// registerCollectionsAddedIn writes registry entries for catalog collections
// introduced at version. Existing entries are left alone.
func registerCollectionsAddedIn(version uint64) func(txn *badger.Txn) error {
	return func(txn *badger.Txn) error {
		for _, c := range models.Catalog {
			if c.AddedIn != version {
				continue
			}
			key := []byte(prefixCollection + c.Name)
			if _, err := txn.Get(key); err == nil {
				continue
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			data, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	}
}

func readSchemaVersion(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(keySchemaVersion))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version uint64
	err = item.Value(func(val []byte) error {
		var decodeErr error
		version, decodeErr = decodeUint64(val)
		return decodeErr
	})
	return version, err
}

// migrate brings the on-disk schema up to target and loads the registry.
func (s *Store) migrate(target uint64) error {
	var current uint64
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		current, err = readSchemaVersion(txn)
		return err
	}); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if current > target {
		return fmt.Errorf("%w: on disk %d, supported %d", ErrSchemaTooNew, current, target)
	}

	for _, m := range migrations {
		if m.version <= current || m.version > target {
			continue
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := m.apply(txn); err != nil {
				return err
			}
			return txn.Set([]byte(keySchemaVersion), encodeUint64(m.version))
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		recordMigration()
		logging.Info().Uint64("version", m.version).Str("migration", m.name).Msg("Store schema migrated")
		current = m.version
	}

	s.schemaVersion = current
	return s.loadRegistry()
}

func (s *Store) loadRegistry() error {
	collections := make(map[string]models.Collection)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixCollection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c models.Collection
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return fmt.Errorf("decode registry entry %s: %w", it.Item().Key(), err)
			}
			collections[c.Name] = c
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load collection registry: %w", err)
	}
	s.collections = collections
	return nil
}
