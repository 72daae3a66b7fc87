// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/netstatus"
	"github.com/tomtom215/tillmirror/internal/offline"
)

type mockSyncer struct {
	calls  atomic.Int32
	err    error
	called chan struct{}
}

func newMockSyncer() *mockSyncer {
	return &mockSyncer{called: make(chan struct{}, 16)}
}

func (m *mockSyncer) SyncAll(context.Context) (models.SyncResult, error) {
	m.calls.Add(1)
	err := m.err
	m.called <- struct{}{}
	return models.SyncResult{Synced: 1}, err
}

func waitCalled(t *testing.T, m *mockSyncer) {
	t.Helper()
	select {
	case <-m.called:
	case <-time.After(2 * time.Second):
		t.Fatal("SyncAll was not called")
	}
}

func serve(t *testing.T, svc *SyncService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	})
}

func TestSyncService_OnReconnect(t *testing.T) {
	network := netstatus.NewStatic(false)
	syncer := newMockSyncer()
	svc := NewSyncService(syncer, network, SyncConfig{OnReconnect: true})
	serve(t, svc)

	network.Set(true)
	waitCalled(t, syncer)

	// Going offline does not replay.
	network.Set(false)
	time.Sleep(50 * time.Millisecond)
	if got := syncer.calls.Load(); got != 1 {
		t.Errorf("SyncAll calls = %d, want 1", got)
	}
}

func TestSyncService_ReconnectDisabled(t *testing.T) {
	network := netstatus.NewStatic(false)
	syncer := newMockSyncer()
	svc := NewSyncService(syncer, network, SyncConfig{})
	serve(t, svc)

	network.Set(true)
	time.Sleep(50 * time.Millisecond)
	if got := syncer.calls.Load(); got != 0 {
		t.Errorf("SyncAll calls = %d, want 0", got)
	}
}

func TestSyncService_Interval(t *testing.T) {
	t.Run("runs while online", func(t *testing.T) {
		syncer := newMockSyncer()
		svc := NewSyncService(syncer, netstatus.NewStatic(true), SyncConfig{Interval: 10 * time.Millisecond})
		serve(t, svc)
		waitCalled(t, syncer)
		waitCalled(t, syncer)
	})

	t.Run("skips while offline", func(t *testing.T) {
		syncer := newMockSyncer()
		svc := NewSyncService(syncer, netstatus.NewStatic(false), SyncConfig{Interval: 10 * time.Millisecond})
		serve(t, svc)
		time.Sleep(60 * time.Millisecond)
		if got := syncer.calls.Load(); got != 0 {
			t.Errorf("SyncAll calls = %d, want 0", got)
		}
	})
}

func TestSyncService_ErrorsDoNotStopService(t *testing.T) {
	syncer := newMockSyncer()
	syncer.err = offline.ErrSyncInProgress
	svc := NewSyncService(syncer, netstatus.NewStatic(true), SyncConfig{})
	serve(t, svc)

	svc.Trigger()
	waitCalled(t, syncer)
	syncer.err = nil
	svc.Trigger()
	waitCalled(t, syncer)
}

func TestSyncService_TriggerCoalesces(t *testing.T) {
	svc := NewSyncService(newMockSyncer(), netstatus.NewStatic(true), SyncConfig{})
	svc.Trigger()
	svc.Trigger()
	svc.Trigger()
	if got := len(svc.trigger); got != 1 {
		t.Errorf("queued triggers = %d, want 1", got)
	}
	if svc.String() != "sync-replayer" {
		t.Errorf("String() = %q", svc.String())
	}
}
