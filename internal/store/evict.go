// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/tillmirror/internal/logging"
)

// EvictionStats counts what an outlet eviction removed.
type EvictionStats struct {
	Mirror    int `json:"mirror"`
	Detail    int `json:"detail"`
	Snapshots int `json:"snapshots"`
}

// Total is the number of removed keys.
func (e EvictionStats) Total() int {
	return e.Mirror + e.Detail + e.Snapshots
}

// DeleteOutlet removes the mirror, detail and snapshot caches of every
// registered collection for outlet. Pending mutations are kept, including
// those created while working in outlet.
func (s *Store) DeleteOutlet(ctx context.Context, outlet string) (EvictionStats, error) {
	var stats EvictionStats

	release, err := s.acquire(ctx)
	if err != nil {
		return stats, err
	}
	defer release()

	if err := checkSegment("outlet id", outlet); err != nil {
		return stats, err
	}

	start := time.Now()
	for _, c := range s.Collections() {
		n, err := s.deleteMirrorLocked(c.Name, outlet)
		if err != nil {
			recordStoreOp("delete_outlet", start, err)
			return stats, err
		}
		stats.Mirror += n

		n, err = s.deleteDetailsForOutlet(c, outlet)
		if err != nil {
			recordStoreOp("delete_outlet", start, err)
			return stats, fmt.Errorf("delete details %s/%s: %w", c.Name, outlet, err)
		}
		stats.Detail += n

		n, err = s.deletePrefix(snapshotOutletPrefix(c.Name, outlet))
		if err != nil {
			recordStoreOp("delete_outlet", start, err)
			return stats, fmt.Errorf("delete snapshots %s/%s: %w", c.Name, outlet, err)
		}
		stats.Snapshots += n
	}
	recordStoreOp("delete_outlet", start, nil)
	return stats, nil
}

// Reset drops every cached record and every pending mutation. Schema
// metadata and sequences survive so the store stays usable.
func (s *Store) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	start := time.Now()
	err := s.db.DropPrefix(
		[]byte(prefixGeneration),
		[]byte(prefixMirror),
		[]byte(prefixDetail),
		[]byte(prefixSnapshot),
		[]byte(prefixPending),
	)
	recordStoreOp("reset", start, err)
	if err != nil {
		return fmt.Errorf("drop store data: %w", err)
	}
	resetPendingGauge()
	logging.Info().Dur("duration", time.Since(start)).Msg("Local store reset")
	return nil
}
