// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/tillmirror/internal/logging"
)

type mirrorPair struct {
	collection string
	outlet     string
}

// SweepOrphans deletes mirror generations that are not live. They are left
// behind when the process dies between a generation swap and the cleanup of
// the previous generation, or while staging a replacement.
func (s *Store) SweepOrphans(ctx context.Context) (int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	keys, err := s.collectKeys([]byte(prefixMirror))
	if err != nil {
		return 0, err
	}

	generations := make(map[mirrorPair]map[uint64]struct{})
	for _, k := range keys {
		collection, outlet, gen, ok := parseMirrorKey(k)
		if !ok {
			continue
		}
		p := mirrorPair{collection, outlet}
		if generations[p] == nil {
			generations[p] = make(map[uint64]struct{})
		}
		generations[p][gen] = struct{}{}
	}

	removed := 0
	for p, gens := range generations {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		n, err := s.sweepPair(p, gens)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if removed > 0 {
		recordSweptGenerations(removed)
	}
	return removed, nil
}

// sweepPair re-reads the live generation under the pair lock so a concurrent
// replacement can not lose its freshly swapped data.
func (s *Store) sweepPair(p mirrorPair, gens map[uint64]struct{}) (int, error) {
	lock := s.pairLock(p.collection, p.outlet)
	lock.Lock()
	defer lock.Unlock()

	var live uint64
	var hasLive bool
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		live, hasLive, err = readGeneration(txn, p.collection, p.outlet)
		return err
	}); err != nil {
		return 0, err
	}

	removed := 0
	for gen := range gens {
		if hasLive && gen == live {
			continue
		}
		if _, err := s.deletePrefix(mirrorGenerationPrefix(p.collection, p.outlet, gen)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Sweeper periodically removes orphaned mirror generations and reclaims
// value-log space.
type Sweeper struct {
	store    *Store
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewSweeper creates a sweeper using the store's SweepInterval.
func NewSweeper(s *Store) *Sweeper {
	return &Sweeper{store: s, interval: s.cfg.SweepInterval}
}

// Start launches the background loop. It sweeps once immediately so crash
// leftovers are cleaned at startup.
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()

	logging.Info().Dur("interval", w.interval).Msg("Store sweeper started")
	return nil
}

// Stop halts the loop and waits for an in-flight sweep.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
	logging.Info().Msg("Store sweeper stopped")
}

// IsRunning reports whether the loop is active.
func (w *Sweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// LastRun returns when the last sweep finished.
func (w *Sweeper) LastRun() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}

func (w *Sweeper) run() {
	defer w.wg.Done()

	w.sweep()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Sweeper) sweep() {
	start := time.Now()

	removed, err := w.store.SweepOrphans(w.ctx)
	if err != nil && w.ctx.Err() == nil {
		logging.Error().Err(err).Msg("Sweeping orphaned mirror generations failed")
	}
	if err := w.store.RunGC(w.ctx); err != nil && w.ctx.Err() == nil {
		logging.Error().Err(err).Msg("Store value-log GC failed")
	}

	w.mu.Lock()
	w.lastRun = time.Now()
	w.mu.Unlock()

	if removed > 0 {
		logging.Info().
			Int("generations", removed).
			Dur("duration", time.Since(start)).
			Msg("Store sweep removed orphaned generations")
	}
}
