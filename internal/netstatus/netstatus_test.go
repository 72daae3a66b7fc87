// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package netstatus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStaticProvider(t *testing.T) {
	s := NewStatic(true)
	if !s.IsOnline() {
		t.Fatal("expected online")
	}

	var mu sync.Mutex
	var seen []bool
	s.Subscribe(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})

	s.Set(true) // no change, no notification
	s.Set(false)
	s.Set(false)
	s.Set(true)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != false || seen[1] != true {
		t.Errorf("transitions = %v, want [false true]", seen)
	}
}

// flakyServer answers 200 while healthy is true, 503 otherwise.
func flakyServer(t *testing.T) (*httptest.Server, *atomic.Bool) {
	t.Helper()
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv, &healthy
}

func TestProbeThreshold(t *testing.T) {
	srv, healthy := flakyServer(t)
	p := NewProbe(ProbeConfig{URL: srv.URL, Interval: time.Hour, Timeout: time.Second, FailureThreshold: 2, AssumeOnline: true})
	ctx := context.Background()

	if !p.CheckNow(ctx) {
		t.Fatal("expected online against healthy server")
	}

	healthy.Store(false)
	if !p.CheckNow(ctx) {
		t.Error("one failure must not flip the signal with threshold 2")
	}
	if p.CheckNow(ctx) {
		t.Error("two failures must flip the signal offline")
	}

	healthy.Store(true)
	if !p.CheckNow(ctx) {
		t.Error("one success must flip the signal back online")
	}
}

func TestProbeClientErrorsCountAsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewProbe(ProbeConfig{URL: srv.URL, Interval: time.Hour, Timeout: time.Second, FailureThreshold: 1})
	if !p.CheckNow(context.Background()) {
		t.Error("a 401 means the backend is reachable")
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProbe(ProbeConfig{URL: url, Interval: time.Hour, Timeout: 500 * time.Millisecond, FailureThreshold: 1, AssumeOnline: true})

	var transitions atomic.Int32
	p.Subscribe(func(bool) { transitions.Add(1) })

	if p.CheckNow(context.Background()) {
		t.Error("closed server must read as offline")
	}
	if transitions.Load() != 1 {
		t.Errorf("transitions = %d, want 1", transitions.Load())
	}
}

func TestProbeLifecycle(t *testing.T) {
	srv, _ := flakyServer(t)
	p := NewProbe(ProbeConfig{URL: srv.URL, Interval: 20 * time.Millisecond, Timeout: time.Second, FailureThreshold: 1})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.IsRunning() {
		t.Error("probe not running after Start")
	}
	time.Sleep(60 * time.Millisecond)
	p.Stop()
	if p.IsRunning() {
		t.Error("probe still running after Stop")
	}
	p.Stop()
}

func TestProbeRequiresURL(t *testing.T) {
	p := NewProbe(DefaultProbeConfig())
	if err := p.Start(context.Background()); err == nil {
		p.Stop()
		t.Fatal("expected error without URL")
	}
}

func TestProbeGaugeFollowsHostPush(t *testing.T) {
	p := NewProbe(ProbeConfig{URL: "http://127.0.0.1:1", AssumeOnline: true})
	if got := testutil.ToFloat64(networkOnline); got != 1 {
		t.Fatalf("initial gauge = %v, want 1", got)
	}

	p.Set(false)
	if got := testutil.ToFloat64(networkOnline); got != 0 {
		t.Errorf("gauge after pushing offline = %v, want 0", got)
	}
	p.Set(true)
	if got := testutil.ToFloat64(networkOnline); got != 1 {
		t.Errorf("gauge after pushing online = %v, want 1", got)
	}
}
