// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/tillmirror/internal/metrics"
)

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	client := New(cfg)

	for i := 0; i < 2; i++ {
		if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/products"}); err == nil {
			t.Fatalf("call %d: error = nil, want 503", i)
		}
	}
	if got := client.BreakerState(); got != "open" {
		t.Fatalf("BreakerState() = %q, want open", got)
	}

	rejected := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected"))
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/products"})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Do() error = %v, want ErrCircuitOpen", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("backend hits = %d, want 2 (open breaker must not call out)", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected")); got != rejected+1 {
		t.Errorf("rejected = %v, want %v", got, rejected+1)
	}
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	client := New(cfg)

	for i := 0; i < 5; i++ {
		_, err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/expenses"})
		if _, ok := AsError(err); !ok {
			t.Fatalf("call %d: error = %v, want *Error", i, err)
		}
	}
	if got := client.BreakerState(); got != "closed" {
		t.Errorf("BreakerState() = %q, want closed", got)
	}
}

func TestIsBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"cancelled", fmt.Errorf("wrapped: %w", context.Canceled), true},
		{"validation rejected", &Error{StatusCode: 400}, true},
		{"server error", &Error{StatusCode: 502}, false},
		{"rate limited", &Error{StatusCode: 429}, false},
		{"transport", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBreakerSuccess(tt.err); got != tt.want {
				t.Errorf("isBreakerSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}
