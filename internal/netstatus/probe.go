// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package netstatus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/tillmirror/internal/logging"
)

// ProbeConfig configures the HTTP reachability probe.
type ProbeConfig struct {
	// URL is requested with GET; any response below 500 counts as reachable.
	URL string

	Interval time.Duration
	Timeout  time.Duration

	// FailureThreshold is how many consecutive failures flip the signal to
	// offline. One success flips it back.
	FailureThreshold int

	// AssumeOnline is the state before the first probe completes.
	AssumeOnline bool
}

// DefaultProbeConfig returns probe defaults.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Interval:         10 * time.Second,
		Timeout:          3 * time.Second,
		FailureThreshold: 2,
		AssumeOnline:     true,
	}
}

// Probe polls the backend and exposes the result as a Provider. It embeds a
// Static so the host can also push state with Set; the next probe result
// overrides a pushed value.
type Probe struct {
	*Static

	cfg    ProbeConfig
	client *http.Client

	checkMu  sync.Mutex
	failures int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewProbe creates a probe. It does nothing until Start.
func NewProbe(cfg ProbeConfig) *Probe {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	p := &Probe{
		Static: NewStatic(cfg.AssumeOnline),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	p.Subscribe(func(online bool) {
		setOnlineGauge(online)
		recordTransition(online)
		logging.Info().Bool("online", online).Str("url", cfg.URL).Msg("Network status changed")
	})
	setOnlineGauge(cfg.AssumeOnline)
	return p
}

// Start begins polling. The first check runs immediately.
func (p *Probe) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	if p.cfg.URL == "" {
		return fmt.Errorf("network probe URL is not configured")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.run()

	logging.Info().Str("url", p.cfg.URL).Dur("interval", p.cfg.Interval).Msg("Network probe started")
	return nil
}

// Stop halts polling and waits for an in-flight check.
func (p *Probe) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info().Msg("Network probe stopped")
}

// IsRunning reports whether polling is active.
func (p *Probe) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Probe) run() {
	defer p.wg.Done()

	p.CheckNow(p.ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.CheckNow(p.ctx)
		}
	}
}

// CheckNow runs one probe and updates the signal. It is called by the poll
// loop and may be called directly by tests or an explicit refresh.
func (p *Probe) CheckNow(ctx context.Context) bool {
	p.checkMu.Lock()
	defer p.checkMu.Unlock()

	err := p.check(ctx)
	if ctx.Err() != nil {
		return p.IsOnline()
	}

	recordProbe(err == nil)
	if err == nil {
		p.failures = 0
		p.Set(true)
		return true
	}

	p.failures++
	logging.Debug().Err(err).Int("consecutive_failures", p.failures).Msg("Network probe failed")
	if p.failures >= p.cfg.FailureThreshold {
		p.Set(false)
	}
	return p.IsOnline()
}

func (p *Probe) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}
