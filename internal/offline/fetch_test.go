// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/store"
)

func TestFetchWithFallback_OnlineReplacesMirror(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()

	first := &fakeRemote{env: listEnvelope(t, "a", "b", "c")}
	if _, err := te.FetchWithFallback(ctx, "products", "out-1", first.call); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	second := &fakeRemote{env: listEnvelope(t, "c", "d")}
	res, err := te.FetchWithFallback(ctx, "products", "out-1", second.call)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if res.Outcome != OutcomeOnline || res.Offline() {
		t.Errorf("outcome = %v, want online", res.Outcome)
	}
	if env := res.Envelope(); string(env.Meta) != `{"total":2}` {
		t.Errorf("meta = %s, want server meta passed through", env.Meta)
	}

	recs, err := te.store.QueryByOutlet(ctx, "products", "out-1")
	if err != nil {
		t.Fatalf("QueryByOutlet: %v", err)
	}
	got := make([]string, len(recs))
	for i, r := range recs {
		got[i] = r.EntityID
		if r.OutletID != "out-1" {
			t.Errorf("record %s outlet = %q", r.EntityID, r.OutletID)
		}
	}
	if !equalStrings(got, []string{"c", "d"}) {
		t.Errorf("mirror = %v, want [c d] with no stale records", got)
	}
}

func TestFetchWithFallback_OfflineServesMirror(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()

	online := &fakeRemote{env: listEnvelope(t, "p1", "p2", "p3", "p4", "p5")}
	if _, err := te.FetchWithFallback(ctx, "products", "out-1", online.call); err != nil {
		t.Fatalf("online fetch: %v", err)
	}

	te.network.Set(false)
	offline := &fakeRemote{env: listEnvelope(t, "never")}
	res, err := te.FetchWithFallback(ctx, "products", "out-1", offline.call)
	if err != nil {
		t.Fatalf("offline fetch: %v", err)
	}

	if n := offline.calls.Load(); n != 0 {
		t.Errorf("remote calls while offline = %d, want 0", n)
	}
	env := res.Envelope()
	if env.Status != models.StatusOK || !env.Offline || env.Pending {
		t.Errorf("envelope = %+v, want ok offline", env)
	}
	if got := dataGUIDs(t, env); !equalStrings(got, []string{"p1", "p2", "p3", "p4", "p5"}) {
		t.Errorf("data = %v, want the 5 mirrored products", got)
	}
	if kinds := te.recorder.kinds(); len(kinds) != 1 || kinds[0] != oplog.KindFetchOffline {
		t.Errorf("oplog kinds = %v, want [fetch_offline]", kinds)
	}
}

func TestFetchWithFallback_FailureWithMirror(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()

	if _, err := te.FetchWithFallback(ctx, "employees", "out-1", (&fakeRemote{env: listEnvelope(t, "e1")}).call); err != nil {
		t.Fatalf("seed: %v", err)
	}

	failing := &fakeRemote{err: errors.New("connection reset")}
	res, err := te.FetchWithFallback(ctx, "employees", "out-1", failing.call)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !res.Offline() {
		t.Error("fallback result should be offline")
	}
	if got := dataGUIDs(t, res.Envelope()); !equalStrings(got, []string{"e1"}) {
		t.Errorf("data = %v", got)
	}
	if kinds := te.recorder.kinds(); len(kinds) != 1 || kinds[0] != oplog.KindFetchFallback {
		t.Errorf("oplog kinds = %v, want [fetch_fallback]", kinds)
	}
}

func TestFetchWithFallback_EmptyCache(t *testing.T) {
	t.Run("failure rethrows original error", func(t *testing.T) {
		te := newTestEngine(t, true)
		cause := errors.New("HTTP 503")
		_, err := te.FetchWithFallback(context.Background(), "products", "out-1", (&fakeRemote{err: cause}).call)
		if !errors.Is(err, cause) {
			t.Errorf("error = %v, want original %v", err, cause)
		}
	})

	t.Run("offline returns empty success", func(t *testing.T) {
		te := newTestEngine(t, false)
		res, err := te.FetchWithFallback(context.Background(), "products", "out-1", (&fakeRemote{}).call)
		if err != nil {
			t.Fatalf("error = %v, want nil", err)
		}
		env := res.Envelope()
		if env.Status != models.StatusOK || !env.Offline || string(env.Data) != "[]" {
			t.Errorf("envelope = %+v, want ok offline []", env)
		}
	})

	t.Run("mirror of another outlet is not used", func(t *testing.T) {
		te := newTestEngine(t, true)
		ctx := context.Background()
		if _, err := te.FetchWithFallback(ctx, "products", "out-2", (&fakeRemote{env: listEnvelope(t, "x")}).call); err != nil {
			t.Fatal(err)
		}
		cause := errors.New("timeout")
		if _, err := te.FetchWithFallback(ctx, "products", "out-1", (&fakeRemote{err: cause}).call); !errors.Is(err, cause) {
			t.Errorf("error = %v, want %v", err, cause)
		}
	})
}

func TestFetchWithFallback_NonListNotMirrored(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()

	if _, err := te.FetchWithFallback(ctx, "products", "out-1", (&fakeRemote{env: listEnvelope(t, "a")}).call); err != nil {
		t.Fatal(err)
	}
	obj := &models.Envelope{Status: models.StatusOK, Data: json.RawMessage(`{"summary":true}`)}
	if _, err := te.FetchWithFallback(ctx, "products", "out-1", (&fakeRemote{env: obj}).call); err != nil {
		t.Fatal(err)
	}
	recs, _ := te.store.QueryByOutlet(ctx, "products", "out-1")
	if len(recs) != 1 {
		t.Errorf("mirror has %d records, want the previous list kept", len(recs))
	}
}

func TestFetchWithFallback_Validation(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()
	remote := &fakeRemote{env: listEnvelope(t)}

	if _, err := te.FetchWithFallback(ctx, "nope", "out-1", remote.call); !errors.Is(err, store.ErrUnknownCollection) {
		t.Errorf("unknown collection error = %v", err)
	}
	if _, err := te.FetchWithFallback(ctx, "products", "a/b", remote.call); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("bad outlet error = %v", err)
	}
	if n := remote.calls.Load(); n != 0 {
		t.Errorf("remote called %d times for invalid input", n)
	}
}

func TestEntityID(t *testing.T) {
	tests := []struct {
		item string
		want string
	}{
		{`{"guid":"g-1","id":7}`, "g-1"},
		{`{"id":42}`, "42"},
		{`{"id":"abc"}`, "abc"},
		{`{"guid":"a/b","id":"ok"}`, "ok"},
		{`{"name":"no ids"}`, "products-3"},
		{`"bare string"`, "products-3"},
		{`{"guid":null}`, "products-3"},
	}
	for _, tt := range tests {
		if got := entityID("products", 3, json.RawMessage(tt.item)); got != tt.want {
			t.Errorf("entityID(%s) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestFetchWithFallback_RepeatedIDsKeepEveryItem(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "repeated guid",
			data: `[{"guid":"x","n":1},{"guid":"x","n":2},null,{"guid":"a/b"},{"id":7}]`,
			want: []string{"x", "products-1", "products-2", "products-3", "7"},
		},
		{
			name: "repeat collides with a positional id",
			data: `[{"guid":"products-1"},{"guid":"products-1"}]`,
			want: []string{"products-1", "products-1-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, true)
			ctx := context.Background()

			server := &models.Envelope{Status: models.StatusOK, Data: json.RawMessage(tt.data)}
			if _, err := te.FetchWithFallback(ctx, "products", "out-1", (&fakeRemote{env: server}).call); err != nil {
				t.Fatalf("online fetch: %v", err)
			}

			recs, err := te.store.QueryByOutlet(ctx, "products", "out-1")
			if err != nil {
				t.Fatalf("QueryByOutlet: %v", err)
			}
			got := make([]string, len(recs))
			for i, r := range recs {
				got[i] = r.EntityID
			}
			if !equalStrings(got, tt.want) {
				t.Errorf("mirrored ids = %v, want %v", got, tt.want)
			}

			te.network.Set(false)
			res, err := te.FetchWithFallback(ctx, "products", "out-1", (&fakeRemote{}).call)
			if err != nil {
				t.Fatalf("offline fetch: %v", err)
			}
			var want, have []interface{}
			if err := json.Unmarshal(server.Data, &want); err != nil {
				t.Fatal(err)
			}
			if err := json.Unmarshal(res.Envelope().Data, &have); err != nil {
				t.Fatalf("decode offline data %s: %v", res.Envelope().Data, err)
			}
			if !reflect.DeepEqual(have, want) {
				t.Errorf("offline data = %s, want %s", res.Envelope().Data, server.Data)
			}
		})
	}
}

func TestFetchDetailWithFallback(t *testing.T) {
	detail := &models.Envelope{Status: models.StatusOK, Data: json.RawMessage(`{"guid":"t1","lines":[1,2]}`)}

	t.Run("online caches, offline serves", func(t *testing.T) {
		te := newTestEngine(t, true)
		ctx := context.Background()

		if _, err := te.FetchDetailWithFallback(ctx, "transactions", "out-1", "t1", (&fakeRemote{env: detail}).call); err != nil {
			t.Fatal(err)
		}
		te.network.Set(false)
		res, err := te.FetchDetailWithFallback(ctx, "transactions", "out-1", "t1", (&fakeRemote{}).call)
		if err != nil {
			t.Fatalf("offline detail: %v", err)
		}
		if got := string(res.Envelope().Data); got != `{"guid":"t1","lines":[1,2]}` {
			t.Errorf("data = %s", got)
		}
		if !res.Offline() {
			t.Error("want offline result")
		}
	})

	t.Run("falls back to list mirror", func(t *testing.T) {
		te := newTestEngine(t, true)
		ctx := context.Background()
		if _, err := te.FetchWithFallback(ctx, "expenses", "out-1", (&fakeRemote{env: listEnvelope(t, "x1")}).call); err != nil {
			t.Fatal(err)
		}
		res, err := te.FetchDetailWithFallback(ctx, "expenses", "out-1", "x1", (&fakeRemote{err: errors.New("down")}).call)
		if err != nil {
			t.Fatalf("detail fallback: %v", err)
		}
		if got := string(res.Envelope().Data); got != `{"guid":"x1","name":"item x1"}` {
			t.Errorf("data = %s", got)
		}
	})

	t.Run("offline miss", func(t *testing.T) {
		te := newTestEngine(t, false)
		_, err := te.FetchDetailWithFallback(context.Background(), "transactions", "out-1", "t9", (&fakeRemote{}).call)
		if !errors.Is(err, ErrNoCacheAvailable) {
			t.Errorf("error = %v, want ErrNoCacheAvailable", err)
		}
	})

	t.Run("failure miss rethrows", func(t *testing.T) {
		te := newTestEngine(t, true)
		cause := errors.New("HTTP 500")
		_, err := te.FetchDetailWithFallback(context.Background(), "transactions", "out-1", "t9", (&fakeRemote{err: cause}).call)
		if !errors.Is(err, cause) {
			t.Errorf("error = %v, want %v", err, cause)
		}
	})
}

func TestFetchSnapshotWithFallback(t *testing.T) {
	te := newTestEngine(t, true)
	ctx := context.Background()
	page := listEnvelope(t, "c1", "c2")

	if _, err := te.FetchSnapshotWithFallback(ctx, "customers", "out-1", "page=2&search=ann", (&fakeRemote{env: page}).call); err != nil {
		t.Fatal(err)
	}

	te.network.Set(false)
	res, err := te.FetchSnapshotWithFallback(ctx, "customers", "out-1", "page=2&search=ann", (&fakeRemote{}).call)
	if err != nil {
		t.Fatalf("offline snapshot: %v", err)
	}
	env := res.Envelope()
	if !env.Offline || string(env.Meta) != `{"total":2}` {
		t.Errorf("envelope = %+v, want cached meta with offline flag", env)
	}
	if got := dataGUIDs(t, env); !equalStrings(got, []string{"c1", "c2"}) {
		t.Errorf("data = %v", got)
	}

	res, err = te.FetchSnapshotWithFallback(ctx, "customers", "out-1", "page=3", (&fakeRemote{}).call)
	if err != nil {
		t.Fatalf("uncached query: %v", err)
	}
	if string(res.Envelope().Data) != "[]" {
		t.Errorf("uncached offline query data = %s, want []", res.Envelope().Data)
	}
}
