// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/config"
)

func testConfig(baseURL string) *config.RemoteConfig {
	return &config.RemoteConfig{
		BaseURL:             baseURL,
		APIToken:            "secret-token",
		Timeout:             5 * time.Second,
		MaxRetries:          3,
		RetryBaseDelay:      time.Millisecond,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Minute,
		BreakerMinRequests:  100,
		BreakerFailureRatio: 1,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(testConfig(server.URL)), server
}

func TestDo_Success(t *testing.T) {
	var gotHeaders http.Header
	var gotQuery url.Values
	var gotBody string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotQuery = r.URL.Query()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if r.URL.Path != "/products" {
			t.Errorf("path = %q, want /products", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","data":[{"guid":"p1"}],"meta":{"total":1}}`))
	})

	env, err := client.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Path:     "/products",
		Query:    url.Values{"search": {"cola"}},
		OutletID: "outlet-1",
		Body:     json.RawMessage(`{"name":"Cola"}`),
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if !env.IsSuccess() || !env.DataIsList() {
		t.Errorf("envelope = %+v, want ok list", env)
	}
	if got := gotHeaders.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q", got)
	}
	if got := gotHeaders.Get(OutletHeader); got != "outlet-1" {
		t.Errorf("%s = %q", OutletHeader, got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if gotQuery.Get("search") != "cola" {
		t.Errorf("query = %v", gotQuery)
	}
	if gotBody != `{"name":"Cola"}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDo_SuccessStatusSpellings(t *testing.T) {
	for _, status := range []string{"ok", "success"} {
		t.Run(status, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"` + status + `","data":{"guid":"p1"}}`))
			})
			env, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/products/p1"})
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if env.DataIsList() {
				t.Error("single record reported as list")
			}
		})
	}
}

func TestDo_EmptyBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	env, err := client.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/products/p1"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !env.IsSuccess() {
		t.Errorf("Status = %q, want ok", env.Status)
	}
}

func TestDo_RemoteErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    int
		wantMessage string
	}{
		{
			name:        "envelope error status with 200",
			status:      http.StatusOK,
			body:        `{"status":"error","message":"price must be positive"}`,
			wantCode:    http.StatusOK,
			wantMessage: "price must be positive",
		},
		{
			name:        "422 with envelope",
			status:      http.StatusUnprocessableEntity,
			body:        `{"status":"error","message":"name is required"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "name is required",
		},
		{
			name:        "500 with plain text",
			status:      http.StatusInternalServerError,
			body:        "database unavailable",
			wantCode:    http.StatusInternalServerError,
			wantMessage: "database unavailable",
		},
		{
			name:        "undecodable 200",
			status:      http.StatusOK,
			body:        `<html>proxy login</html>`,
			wantCode:    http.StatusOK,
			wantMessage: "undecodable response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/products"})
			re, ok := AsError(err)
			if !ok {
				t.Fatalf("Do() error = %v, want *Error", err)
			}
			if re.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %d, want %d", re.StatusCode, tt.wantCode)
			}
			if !strings.Contains(re.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", re.Message, tt.wantMessage)
			}
		})
	}
}

func TestDo_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := New(testConfig(baseURL))
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/products"})
	if err == nil {
		t.Fatal("Do() error = nil, want transport error")
	}
	if _, ok := AsError(err); ok {
		t.Errorf("transport failure reported as *Error: %v", err)
	}
}

func TestDo_RateLimitRetry(t *testing.T) {
	t.Run("retries then succeeds", func(t *testing.T) {
		var attempts atomic.Int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})

		if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/shifts"}); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var attempts atomic.Int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/shifts"})
		re, ok := AsError(err)
		if !ok || re.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("Do() error = %v, want 429 *Error", err)
		}
		// initial attempt plus MaxRetries
		if got := attempts.Load(); got != 4 {
			t.Errorf("attempts = %d, want 4", got)
		}
	})

	t.Run("context cancelled during backoff", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.Do(ctx, Request{Method: http.MethodGet, Path: "/shifts"})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Do() error = %v, want deadline exceeded", err)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("2"); !ok || d != 2*time.Second {
		t.Errorf("parseRetryAfter(2) = %v, %v", d, ok)
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Error("empty header parsed")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Error("garbage header parsed")
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if d, ok := parseRetryAfter(future); !ok || d <= 0 {
		t.Errorf("parseRetryAfter(date) = %v, %v", d, ok)
	}
}

func TestErrorTemporary(t *testing.T) {
	tests := map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusNotFound:            false,
		http.StatusConflict:            false,
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	}
	for code, want := range tests {
		if got := (&Error{StatusCode: code}).Temporary(); got != want {
			t.Errorf("Temporary(%d) = %v, want %v", code, got, want)
		}
	}
}
