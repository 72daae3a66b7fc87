// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/store"
)

func TestClearOutletCache(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()

	for _, outlet := range []string{"out-1", "out-2"} {
		if _, err := te.FetchWithFallback(ctx, "products", outlet, (&fakeRemote{env: listEnvelope(t, outlet+"-a")}).call); err != nil {
			t.Fatal(err)
		}
		if _, err := te.FetchWithFallback(ctx, "shifts", outlet, (&fakeRemote{env: listEnvelope(t, outlet+"-s")}).call); err != nil {
			t.Fatal(err)
		}
	}
	queueWrites(t, te, "products", 1)

	stats, err := te.ClearOutletCache(ctx, "out-1")
	if err != nil {
		t.Fatalf("ClearOutletCache: %v", err)
	}
	if stats.Mirror != 2 {
		t.Errorf("mirror evicted = %d, want 2", stats.Mirror)
	}
	if kinds := te.recorder.kinds(); len(kinds) == 0 || kinds[len(kinds)-1] != oplog.KindEvictOutlet {
		t.Errorf("oplog kinds after eviction = %v, want %s last", kinds, oplog.KindEvictOutlet)
	}

	offline, err := te.FetchWithFallback(ctx, "products", "out-1", (&fakeRemote{}).call)
	if err != nil {
		t.Fatal(err)
	}
	if string(offline.Envelope().Data) != "[]" {
		t.Errorf("out-1 still cached: %s", offline.Envelope().Data)
	}
	other, err := te.FetchWithFallback(ctx, "products", "out-2", (&fakeRemote{}).call)
	if err != nil {
		t.Fatal(err)
	}
	if got := dataGUIDs(t, other.Envelope()); !equalStrings(got, []string{"out-2-a"}) {
		t.Errorf("out-2 mirror = %v, want untouched", got)
	}

	if n, _ := te.PendingSyncCount(ctx); n != 1 {
		t.Errorf("pending = %d, outlet eviction must keep the queue", n)
	}

	if _, err := te.ClearOutletCache(ctx, "a/b"); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("bad outlet error = %v", err)
	}
}

func TestClearAllData(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()

	if _, err := te.FetchWithFallback(ctx, "products", "out-1", (&fakeRemote{env: listEnvelope(t, "a")}).call); err != nil {
		t.Fatal(err)
	}
	if _, err := te.FetchDetailWithFallback(ctx, "products", "out-1", "a", (&fakeRemote{env: &models.Envelope{Status: models.StatusOK, Data: json.RawMessage(`{"guid":"a"}`)}}).call); err != nil {
		t.Fatal(err)
	}
	queueWrites(t, te, "expenses", 2)

	if err := te.ClearAllData(ctx); err != nil {
		t.Fatalf("ClearAllData: %v", err)
	}

	if n, _ := te.PendingSyncCount(ctx); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
	if got := te.notifier.lastPending(); got != 0 {
		t.Errorf("badge = %d, want 0", got)
	}
	if _, err := te.FetchDetailWithFallback(ctx, "products", "out-1", "a", (&fakeRemote{}).call); !errors.Is(err, ErrNoCacheAvailable) {
		t.Errorf("detail after clear = %v, want ErrNoCacheAvailable", err)
	}
	recs, _ := te.store.QueryByOutlet(ctx, "products", "out-1")
	if len(recs) != 0 {
		t.Errorf("mirror has %d records after clear", len(recs))
	}
}
