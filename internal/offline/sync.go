// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/metrics"
	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/oplog"
)

// Replayer sends one pending mutation to the backend. It must use the
// mutation's own OutletID.
type Replayer interface {
	Replay(ctx context.Context, m models.PendingMutation) error
}

// ReplayFunc adapts a function to Replayer.
type ReplayFunc func(ctx context.Context, m models.PendingMutation) error

// Replay implements Replayer.
func (f ReplayFunc) Replay(ctx context.Context, m models.PendingMutation) error {
	return f(ctx, m)
}

func (e *Engine) syncLock(entityType string) *sync.Mutex {
	mu, _ := e.syncLocks.LoadOrStore(entityType, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// SyncPending replays the queue of entityType in insertion order. Records
// that replay and are deleted count as synced; every other record counts as
// failed and stays queued for the next pass. A pass already running for
// the same type yields ErrSyncInProgress. Cancelling ctx stops the pass
// between records and returns the counts so far with ctx.Err().
func (e *Engine) SyncPending(ctx context.Context, entityType string, r Replayer) (models.SyncResult, error) {
	var res models.SyncResult

	lock := e.syncLock(entityType)
	if !lock.TryLock() {
		return res, fmt.Errorf("%w: %s", ErrSyncInProgress, entityType)
	}
	defer lock.Unlock()

	pending, err := e.store.ListPending(ctx, entityType)
	if err != nil {
		return res, fmt.Errorf("list pending %s: %w", entityType, err)
	}
	if len(pending) == 0 {
		return res, nil
	}

	start := time.Now()
	log := logging.Ctx(ctx).With().Str("entity_type", entityType).Logger()

	var passErr error
	for i := range pending {
		if err := ctx.Err(); err != nil {
			passErr = err
			break
		}
		m := pending[i]

		if err := r.Replay(ctx, m); err != nil {
			res.Failed++
			log.Debug().Err(err).Uint64("seq", m.Seq).Str("op", string(m.Op)).Msg("Replay failed, keeping record")
			continue
		}
		// The backend has accepted the write, so removal must not be
		// abandoned with the pass.
		if err := e.store.DeletePending(context.WithoutCancel(ctx), &m); err != nil {
			// The record stays and the next pass replays it again.
			res.Failed++
			log.Warn().Err(err).Uint64("seq", m.Seq).Msg("Replayed record could not be removed from the queue")
			continue
		}
		res.Synced++
	}

	elapsed := time.Since(start)
	metrics.RecordSyncPass(entityType, res.Synced, res.Failed, elapsed)
	log.Info().Int("synced", res.Synced).Int("failed", res.Failed).Dur("duration", elapsed).Msg("Sync pass finished")

	e.recorder.Record(context.WithoutCancel(ctx), oplog.Entry{
		Kind:       oplog.KindSyncPass,
		EntityType: entityType,
		Synced:     res.Synced,
		Failed:     res.Failed,
	})
	e.notifier.SyncCompleted(entityType, res)
	e.notifyPending(context.WithoutCancel(ctx))
	return res, passErr
}

// SyncAll runs SyncPending for every entity type in replayers, in name
// order, and sums the results. A type whose pass is already running is
// skipped and reported in the joined error; the other types still run.
func (e *Engine) SyncAll(ctx context.Context, replayers map[string]Replayer) (models.SyncResult, error) {
	types := make([]string, 0, len(replayers))
	for t := range replayers {
		types = append(types, t)
	}
	sort.Strings(types)

	var total models.SyncResult
	var errs []error
	for _, t := range types {
		res, err := e.SyncPending(ctx, t, replayers[t])
		total.Add(res)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return total, errors.Join(errs...)
}
