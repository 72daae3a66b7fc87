// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import (
	"context"
	"sync"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/netstatus"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/store"
)

// RemoteCall performs one backend request for the engine.
type RemoteCall func(ctx context.Context) (*models.Envelope, error)

// Notifier receives badge updates. Implementations must not block.
type Notifier interface {
	PendingChanged(total int, byType map[string]int)
	SyncCompleted(entityType string, result models.SyncResult)
}

// Recorder receives operational log entries.
type Recorder interface {
	Record(ctx context.Context, e oplog.Entry)
}

type nopNotifier struct{}

func (nopNotifier) PendingChanged(int, map[string]int) {}
func (nopNotifier) SyncCompleted(string, models.SyncResult) {}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, oplog.Entry) {}

// Engine is safe for concurrent use.
type Engine struct {
	store    *store.Store
	network  netstatus.Provider
	notifier Notifier
	recorder Recorder

	// syncLocks holds one *sync.Mutex per entity type.
	syncLocks sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the badge notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithRecorder sets the operational log.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New creates an engine over st, consulting network before every remote call.
func New(st *store.Store, network netstatus.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		network:  network,
		notifier: nopNotifier{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Online reports the current network signal.
func (e *Engine) Online() bool {
	return e.network.IsOnline()
}

// notifyPending pushes the current queue depth to the notifier.
func (e *Engine) notifyPending(ctx context.Context) {
	byType, err := e.store.CountPendingByType(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to count pending mutations for badge")
		return
	}
	total := 0
	for _, n := range byType {
		total += n
	}
	e.notifier.PendingChanged(total, byType)
}

// RefreshPending publishes the queue depth without a write or sync, e.g.
// for mutations left over from a previous run.
func (e *Engine) RefreshPending(ctx context.Context) {
	e.notifyPending(ctx)
}
