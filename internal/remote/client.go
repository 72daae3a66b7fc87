// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package remote is the REST client for the POS backend.

Every backend response is an envelope ({status, data, meta, message}). Do
returns the decoded envelope for accepted calls and a *Error for anything the
backend answered but did not accept, so callers can tell "the backend said
no" from "the backend could not be reached".

Resilience:
  - Client-side rate limit (golang.org/x/time/rate) before each attempt
  - HTTP 429 retried with exponential backoff, honouring Retry-After
  - Circuit breaker (sony/gobreaker) around each call
  - No extra timeouts beyond the HTTP client timeout
*/
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tillmirror/internal/config"
	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/metrics"
	"github.com/tomtom215/tillmirror/internal/models"
)

// OutletHeader carries the outlet a call is made for.
const OutletHeader = "X-Outlet-ID"

// maxErrorBodySize caps how much of a rejected response is read.
const maxErrorBodySize = 64 * 1024

// Request is one backend call.
type Request struct {
	Method   string
	Path     string // relative to the base URL, e.g. "/products/p1"
	Query    url.Values
	OutletID string
	Body     json.RawMessage
}

// Client calls the backend. It is safe for concurrent use.
type Client struct {
	baseURL        string
	token          string
	client         *http.Client
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker[*models.Envelope]
	maxRetries     int
	retryBaseDelay time.Duration
}

// New creates a client from cfg.
func New(cfg *config.RemoteConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.APIToken,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(limit, burst),
		breaker:        newBreaker(cfg),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// Do performs req and returns the backend envelope.
func (c *Client) Do(ctx context.Context, req Request) (*models.Envelope, error) {
	start := time.Now()
	env, err := c.execute(func() (*models.Envelope, error) {
		return c.do(ctx, req)
	})
	metrics.RecordRemoteRequest(req.Method, resultLabel(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	return env, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if _, ok := AsError(err); ok {
		return "remote_error"
	}
	return "transport_error"
}

func (c *Client) do(ctx context.Context, req Request) (*models.Envelope, error) {
	resp, err := c.doWithRateLimit(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejection(resp)
	}
	return decodeEnvelope(resp)
}

// doWithRateLimit sends req, retrying HTTP 429 with exponential backoff
// (base, 2*base, 4*base, ...) or the server's Retry-After. The client-side
// limiter is waited on before every attempt.
func (c *Client) doWithRateLimit(ctx context.Context, req Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		httpReq, err := c.newHTTPRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		metrics.RemoteRateLimited.Inc()
		if attempt >= c.maxRetries {
			// Hand the final 429 back so it becomes a *Error.
			return resp, nil
		}
		_ = resp.Body.Close()

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if ra, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			delay = ra
		}
		logging.Ctx(ctx).Warn().Str("path", req.Path).Dur("retry_delay", delay).Int("attempt", attempt+1).Int("max_retries", c.maxRetries).Msg("Backend rate limited (HTTP 429), retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if req.OutletID != "" {
		httpReq.Header.Set(OutletHeader, req.OutletID)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Correlation-ID", id)
	}
	return httpReq, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// decodeEnvelope reads an accepted response. An empty body (204, or a bare
// 200 on DELETE) counts as an ok envelope with no data.
func decodeEnvelope(resp *http.Response) (*models.Envelope, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &models.Envelope{Status: models.StatusOK}, nil
	}

	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "undecodable response: " + err.Error()}
	}
	if !env.IsSuccess() {
		msg := env.Message
		if msg == "" {
			msg = "backend returned status " + strconv.Quote(env.Status)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Status: env.Status, Message: msg}
	}
	return &env, nil
}

// rejection builds the *Error for a non-2xx response, preferring the
// envelope message when the body is one.
func rejection(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var env models.Envelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Status != "" || env.Message != "") {
		return &Error{StatusCode: resp.StatusCode, Status: env.Status, Message: env.Message}
	}
	return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
