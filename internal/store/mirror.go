// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/models"
)

// ReplaceMirror makes records the complete mirror of collection for outlet.
// Records missing from the new list disappear; the swap is atomic for readers.
// Each record's OutletID and Position are set here; UpdatedAt defaults to now.
func (s *Store) ReplaceMirror(ctx context.Context, collection, outlet string, records []models.MirrorRecord) error {
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
	for i := range records {
		if err := checkSegment("entity id", records[i].EntityID); err != nil {
			return err
		}
	}

	start := time.Now()
	lock := s.pairLock(collection, outlet)
	lock.Lock()
	defer lock.Unlock()

	gen, err := s.generationSeq.Next()
	if err != nil {
		return fmt.Errorf("next generation: %w", err)
	}

	if err := s.writeGeneration(collection, outlet, gen, records, start); err != nil {
		// Partially written staging data is unreachable; the sweeper drops it.
		recordStoreOp("replace_mirror", start, err)
		return fmt.Errorf("stage mirror %s/%s: %w", collection, outlet, err)
	}

	var previous uint64
	var hadPrevious bool
	err = s.update(func(txn *badger.Txn) error {
		var getErr error
		previous, hadPrevious, getErr = readGeneration(txn, collection, outlet)
		if getErr != nil {
			return getErr
		}
		return txn.Set(generationKey(collection, outlet), encodeUint64(gen))
	})
	recordStoreOp("replace_mirror", start, err)
	if err != nil {
		return fmt.Errorf("swap mirror %s/%s: %w", collection, outlet, err)
	}
	recordMirrorReplaced(collection, len(records))

	if hadPrevious && previous != gen {
		if _, err := s.deletePrefix(mirrorGenerationPrefix(collection, outlet, previous)); err != nil {
			logging.Warn().Err(err).
				Str("collection", collection).
				Str("outlet_id", outlet).
				Uint64("generation", previous).
				Msg("Failed to drop previous mirror generation; sweeper will retry")
		}
	}
	return nil
}

func (s *Store) writeGeneration(collection, outlet string, gen uint64, records []models.MirrorRecord, now time.Time) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range records {
		rec := records[i]
		rec.OutletID = outlet
		rec.Position = i
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = now
		}
		data, err := encodeRecord(&rec)
		if err != nil {
			return fmt.Errorf("encode %s: %w", rec.EntityID, err)
		}
		if err := wb.Set(mirrorKey(collection, outlet, gen, rec.EntityID), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// readGeneration returns the live generation of a mirror, if any.
func readGeneration(txn *badger.Txn, collection, outlet string) (uint64, bool, error) {
	item, err := txn.Get(generationKey(collection, outlet))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var gen uint64
	err = item.Value(func(val []byte) error {
		var decodeErr error
		gen, decodeErr = decodeUint64(val)
		return decodeErr
	})
	return gen, err == nil, err
}

// QueryByOutlet returns the live mirror for outlet in server order. An
// outlet with nothing cached yields an empty, non-nil slice.
func (s *Store) QueryByOutlet(ctx context.Context, collection, outlet string) ([]models.MirrorRecord, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.Collection(collection); err != nil {
		return nil, err
	}
	if err := checkSegment("outlet id", outlet); err != nil {
		return nil, err
	}

	start := time.Now()
	records := []models.MirrorRecord{}
	err = s.db.View(func(txn *badger.Txn) error {
		gen, ok, err := readGeneration(txn, collection, outlet)
		if err != nil || !ok {
			return err
		}

		prefix := mirrorGenerationPrefix(collection, outlet, gen)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec models.MirrorRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	recordStoreOp("query_by_outlet", start, err)
	if err != nil {
		return nil, fmt.Errorf("query mirror %s/%s: %w", collection, outlet, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})
	return records, nil
}

// GetByID returns one mirrored record or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, collection, outlet, entityID string) (models.MirrorRecord, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return models.MirrorRecord{}, err
	}
	defer release()

	if _, err := s.Collection(collection); err != nil {
		return models.MirrorRecord{}, err
	}
	if err := checkSegment("outlet id", outlet); err != nil {
		return models.MirrorRecord{}, err
	}
	if err := checkSegment("entity id", entityID); err != nil {
		return models.MirrorRecord{}, err
	}

	var rec models.MirrorRecord
	err = s.db.View(func(txn *badger.Txn) error {
		gen, ok, err := readGeneration(txn, collection, outlet)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		item, err := txn.Get(mirrorKey(collection, outlet, gen, entityID))
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

// DeleteEntity removes one record from the live mirror. Missing records are
// not an error.
func (s *Store) DeleteEntity(ctx context.Context, collection, outlet, entityID string) error {
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
	if err := checkSegment("entity id", entityID); err != nil {
		return err
	}

	start := time.Now()
	err = s.update(func(txn *badger.Txn) error {
		gen, ok, err := readGeneration(txn, collection, outlet)
		if err != nil || !ok {
			return err
		}
		return txn.Delete(mirrorKey(collection, outlet, gen, entityID))
	})
	recordStoreOp("delete_entity", start, err)
	return err
}

// DeleteByOutlet drops the mirror of collection for outlet, including any
// orphaned generations. It returns the number of records removed.
func (s *Store) DeleteByOutlet(ctx context.Context, collection, outlet string) (int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if _, err := s.Collection(collection); err != nil {
		return 0, err
	}
	if err := checkSegment("outlet id", outlet); err != nil {
		return 0, err
	}
	return s.deleteMirrorLocked(collection, outlet)
}

// deleteMirrorLocked requires the shared store lock to be held.
func (s *Store) deleteMirrorLocked(collection, outlet string) (int, error) {
	start := time.Now()
	lock := s.pairLock(collection, outlet)
	lock.Lock()
	defer lock.Unlock()

	if err := s.update(func(txn *badger.Txn) error {
		return txn.Delete(generationKey(collection, outlet))
	}); err != nil {
		recordStoreOp("delete_by_outlet", start, err)
		return 0, fmt.Errorf("drop generation pointer %s/%s: %w", collection, outlet, err)
	}

	n, err := s.deletePrefix(mirrorOutletPrefix(collection, outlet))
	recordStoreOp("delete_by_outlet", start, err)
	if err != nil {
		return 0, fmt.Errorf("delete mirror %s/%s: %w", collection, outlet, err)
	}
	return n, nil
}

// mirrorOutlets lists every outlet with a generation pointer or mirror data
// for collection.
func (s *Store) mirrorOutlets(collection string) ([]string, error) {
	seen := make(map[string]struct{})

	pointerPrefix := []byte(prefixGeneration + collection + "/")
	keys, err := s.collectKeys(pointerPrefix)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		seen[string(k[len(pointerPrefix):])] = struct{}{}
	}

	keys, err = s.collectKeys([]byte(prefixMirror + collection + "/"))
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if _, outlet, _, ok := parseMirrorKey(k); ok {
			seen[outlet] = struct{}{}
		}
	}

	outlets := make([]string, 0, len(seen))
	for o := range seen {
		outlets = append(outlets, o)
	}
	sort.Strings(outlets)
	return outlets, nil
}

// DeleteAll drops the mirror, detail and snapshot records of collection for
// every outlet. Pending mutations are not touched.
func (s *Store) DeleteAll(ctx context.Context, collection string) (int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if _, err := s.Collection(collection); err != nil {
		return 0, err
	}

	outlets, err := s.mirrorOutlets(collection)
	if err != nil {
		return 0, fmt.Errorf("list outlets of %s: %w", collection, err)
	}

	total := 0
	for _, outlet := range outlets {
		n, err := s.deleteMirrorLocked(collection, outlet)
		if err != nil {
			return total, err
		}
		total += n
	}

	for _, prefix := range [][]byte{detailCollectionPrefix(collection), []byte(prefixSnapshot + collection + "/")} {
		n, err := s.deletePrefix(prefix)
		if err != nil {
			return total, fmt.Errorf("delete %s: %w", prefix, err)
		}
		total += n
	}
	return total, nil
}
