// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package entities

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/config"
	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/netstatus"
	"github.com/tomtom215/tillmirror/internal/offline"
	"github.com/tomtom215/tillmirror/internal/remote"
	"github.com/tomtom215/tillmirror/internal/store"
)

// backendCall is one request seen by the fake backend.
type backendCall struct {
	Method string
	Path   string
	Outlet string
	Query  string
	Body   string
}

// fakeBackend serves fixed list bodies and records every call.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []backendCall
	lists    map[string]string // path -> data array
	notFound bool
}

func (b *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, _ := io.ReadAll(req.Body)
			b.mu.Lock()
			b.calls = append(b.calls, backendCall{
				Method: req.Method,
				Path:   req.URL.Path,
				Outlet: req.Header.Get(remote.OutletHeader),
				Query:  req.URL.RawQuery,
				Body:   string(body),
			})
			b.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	write := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
	routes := func(r chi.Router) {
		r.Get("/{collection}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			data, ok := b.lists[req.URL.Path]
			b.mu.Unlock()
			if !ok {
				data = "[]"
			}
			write(w, http.StatusOK, `{"status":"ok","data":`+data+`,"meta":{"query":"`+req.URL.RawQuery+`"}}`)
		})
		r.Get("/{collection}/{id}", func(w http.ResponseWriter, req *http.Request) {
			write(w, http.StatusOK, `{"status":"ok","data":{"guid":"`+chi.URLParam(req, "id")+`","detail":true}}`)
		})
		r.Post("/{collection}", func(w http.ResponseWriter, _ *http.Request) {
			write(w, http.StatusCreated, `{"status":"ok","data":{"guid":"created"}}`)
		})
		r.Put("/{collection}/{id}", func(w http.ResponseWriter, _ *http.Request) {
			write(w, http.StatusOK, `{"status":"ok"}`)
		})
		r.Delete("/{collection}/{id}", func(w http.ResponseWriter, _ *http.Request) {
			b.mu.Lock()
			notFound := b.notFound
			b.mu.Unlock()
			if notFound {
				write(w, http.StatusNotFound, `{"status":"error","message":"not found"}`)
				return
			}
			write(w, http.StatusOK, `{"status":"ok"}`)
		})
	}
	routes(r)
	r.Route("/front-office", routes)
	return r
}

func (b *fakeBackend) recorded() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendCall(nil), b.calls...)
}

func (b *fakeBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

type fixture struct {
	registry *Registry
	engine   *offline.Engine
	network  *netstatus.Static
	backend  *fakeBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := store.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "store")
	cfg.SyncWrites = false
	cfg.Compression = false
	cfg.BlockCacheSize = 8 << 20
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	backend := &fakeBackend{lists: map[string]string{}}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	client := remote.New(&config.RemoteConfig{
		BaseURL:             server.URL,
		Timeout:             5 * time.Second,
		MaxRetries:          1,
		RetryBaseDelay:      time.Millisecond,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Minute,
		BreakerMinRequests:  100,
		BreakerFailureRatio: 1,
	})

	network := netstatus.NewStatic(true)
	engine := offline.New(st, network)
	return &fixture{
		registry: NewRegistry(engine, client),
		engine:   engine,
		network:  network,
		backend:  backend,
	}
}

func (f *fixture) service(t *testing.T, name string) *Service {
	t.Helper()
	svc, err := f.registry.Service(name)
	if err != nil {
		t.Fatalf("Service(%q): %v", name, err)
	}
	return svc
}

func TestService_ListFallsBackOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.lists["/products"] = `[{"guid":"p1"},{"guid":"p2"}]`
	svc := f.service(t, "products")

	res, err := svc.List(ctx, "out-1")
	if err != nil {
		t.Fatalf("online List: %v", err)
	}
	if res.Offline() {
		t.Error("online list reported offline")
	}
	calls := f.backend.recorded()
	if len(calls) != 1 || calls[0].Outlet != "out-1" || calls[0].Method != http.MethodGet {
		t.Fatalf("backend calls = %+v", calls)
	}

	f.network.Set(false)
	f.backend.reset()
	res, err = svc.List(ctx, "out-1")
	if err != nil {
		t.Fatalf("offline List: %v", err)
	}
	if !res.Offline() {
		t.Error("offline list not flagged")
	}
	var items []map[string]string
	if err := json.Unmarshal(res.Envelope().Data, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0]["guid"] != "p1" {
		t.Errorf("items = %v", items)
	}
	if n := len(f.backend.recorded()); n != 0 {
		t.Errorf("backend called %d times while offline", n)
	}
}

func TestService_GetUsesItemPath(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, "checkins")

	res, err := svc.Get(context.Background(), "out-1", "c 1")
	if err != nil {
		t.Fatal(err)
	}
	calls := f.backend.recorded()
	if len(calls) != 1 || calls[0].Path != "/front-office/checkins/c 1" {
		t.Errorf("calls = %+v", calls)
	}
	if res.Outcome != offline.OutcomeOnline {
		t.Errorf("outcome = %v", res.Outcome)
	}
}

func TestService_QueryCachesByParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.lists["/customers"] = `[{"guid":"c1"}]`
	svc := f.service(t, "customers")

	params := url.Values{"search": {"ann"}, "page": {"2"}}
	if _, err := svc.Query(ctx, "out-1", params); err != nil {
		t.Fatal(err)
	}
	if q := f.backend.recorded()[0].Query; q != "page=2&search=ann" {
		t.Errorf("query sent = %q", q)
	}

	f.network.Set(false)
	res, err := svc.Query(ctx, "out-1", url.Values{"page": {"2"}, "search": {"ann"}})
	if err != nil {
		t.Fatal(err)
	}
	env := res.Envelope()
	if !env.Offline || string(env.Meta) != `{"query":"page=2&search=ann"}` {
		t.Errorf("cached envelope = %+v", env)
	}
}

func TestService_OfflineWritesReplayOnSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(t, "expenses")

	f.network.Set(false)
	if _, err := svc.Create(ctx, "out-1", json.RawMessage(`{"amount":5}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, "out-2", "x1", json.RawMessage(`{"amount":6}`)); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Delete(ctx, "out-1", "x2")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Pending() {
		t.Error("offline delete not pending")
	}
	if n, _ := f.engine.PendingSyncCount(ctx); n != 3 {
		t.Fatalf("pending = %d, want 3", n)
	}

	f.network.Set(true)
	synced, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if synced.Synced != 3 || synced.Failed != 0 {
		t.Errorf("sync = %+v", synced)
	}

	want := []backendCall{
		{Method: http.MethodPost, Path: "/expenses", Outlet: "out-1", Body: `{"amount":5}`},
		{Method: http.MethodPut, Path: "/expenses/x1", Outlet: "out-2", Body: `{"amount":6}`},
		{Method: http.MethodDelete, Path: "/expenses/x2", Outlet: "out-1"},
	}
	got := f.backend.recorded()
	if len(got) != len(want) {
		t.Fatalf("calls = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestService_ReplayDeleteNotFoundIsDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(t, "products")

	f.network.Set(false)
	if _, err := svc.Delete(ctx, "out-1", "gone"); err != nil {
		t.Fatal(err)
	}
	f.network.Set(true)
	f.backend.mu.Lock()
	f.backend.notFound = true
	f.backend.mu.Unlock()

	res, err := svc.Sync(ctx)
	if err != nil || res.Synced != 1 {
		t.Errorf("sync = %+v, %v", res, err)
	}
}

func TestService_InvalidPayload(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, "products")
	for _, body := range []string{"", "null", "[1]", "{"} {
		if _, err := svc.Create(context.Background(), "out-1", json.RawMessage(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("Create(%q) error = %v", body, err)
		}
	}
	if len(f.backend.recorded()) != 0 {
		t.Error("invalid payload reached the backend")
	}
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)

	if got := len(f.registry.Services()); got != len(models.Catalog) {
		t.Errorf("services = %d, want %d", got, len(models.Catalog))
	}
	replayers := f.registry.Replayers()
	for _, c := range models.Catalog {
		if _, ok := replayers[c.EntityType]; !ok {
			t.Errorf("no replayer for %s", c.EntityType)
		}
	}
	if _, err := f.registry.Service("invoices"); !errors.Is(err, store.ErrUnknownCollection) {
		t.Errorf("unknown collection error = %v", err)
	}
	if _, err := f.registry.SyncEntityType(context.Background(), "invoice"); !errors.Is(err, ErrUnknownEntityType) {
		t.Errorf("unknown entity type error = %v", err)
	}

	ctx := context.Background()
	f.network.Set(false)
	for _, name := range []string{"products", "shifts", "purchases"} {
		if _, err := f.service(t, name).Create(ctx, "out-1", json.RawMessage(`{"x":1}`)); err != nil {
			t.Fatal(err)
		}
	}
	f.network.Set(true)
	res, err := f.registry.SyncAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Synced != 3 {
		t.Errorf("SyncAll = %+v, want 3 synced", res)
	}
}
