// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import (
	"context"
	"fmt"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/metrics"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/store"
)

// ClearOutletCache drops the mirrors, details and query caches of outlet
// across every registered collection. Pending mutations are kept: they
// carry their own outlet and replay against it.
func (e *Engine) ClearOutletCache(ctx context.Context, outlet string) (store.EvictionStats, error) {
	if err := checkOutlet(outlet); err != nil {
		return store.EvictionStats{}, err
	}
	stats, err := e.store.DeleteOutlet(ctx, outlet)
	if err != nil {
		return stats, fmt.Errorf("clear outlet %s: %w", outlet, err)
	}

	metrics.RecordEviction("outlet")
	logging.Ctx(ctx).Info().Str("outlet_id", outlet).Int("mirror", stats.Mirror).Int("detail", stats.Detail).Int("snapshots", stats.Snapshots).Msg("Outlet cache cleared")
	e.recorder.Record(ctx, oplog.Entry{
		Kind:     oplog.KindEvictOutlet,
		OutletID: outlet,
		Message:  fmt.Sprintf("removed %d cached records", stats.Total()),
	})
	return stats, nil
}

// ClearAllData wipes every cache and the pending queue. Unsynced writes are
// lost; callers only do this at logout.
func (e *Engine) ClearAllData(ctx context.Context) error {
	pending, err := e.store.CountPending(ctx)
	if err != nil {
		pending = -1
	}
	if err := e.store.Reset(ctx); err != nil {
		return fmt.Errorf("clear all data: %w", err)
	}

	metrics.RecordEviction("all")
	logging.Ctx(ctx).Warn().Int("discarded_pending", pending).Msg("All local data cleared")
	e.recorder.Record(ctx, oplog.Entry{
		Kind:    oplog.KindClearAll,
		Message: fmt.Sprintf("discarded %d pending mutations", pending),
	})
	e.notifier.PendingChanged(0, map[string]int{})
	return nil
}

// PendingSyncCount returns the number of unsynced mutations across all
// entity types.
func (e *Engine) PendingSyncCount(ctx context.Context) (int, error) {
	return e.store.CountPending(ctx)
}

// PendingSyncCountByType returns unsynced mutations per entity type.
func (e *Engine) PendingSyncCountByType(ctx context.Context) (map[string]int, error) {
	return e.store.CountPendingByType(ctx)
}
