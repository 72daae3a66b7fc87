// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer is satisfied by *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the local API server under supervision. On
// cancellation it drains in-flight requests for up to drainTimeout.
type HTTPServerService struct {
	srv          HTTPServer
	drainTimeout time.Duration
}

// NewHTTPServerService wraps srv. A non-positive drainTimeout means 10s.
func NewHTTPServerService(srv HTTPServer, drainTimeout time.Duration) *HTTPServerService {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &HTTPServerService{srv: srv, drainTimeout: drainTimeout}
}

// Serve implements suture.Service. It returns only after ListenAndServe
// has returned, so a restarted service never races the old listener.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() { listenErr <- h.srv.ListenAndServe() }()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	if err := h.drain(); err != nil {
		return err
	}
	<-listenErr
	return ctx.Err()
}

// drain uses a fresh context; the serve context is already done.
func (h *HTTPServerService) drain() error {
	drainCtx, cancel := context.WithTimeout(context.Background(), h.drainTimeout)
	defer cancel()
	if err := h.srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain http server: %w", err)
	}
	return nil
}

func (h *HTTPServerService) String() string {
	return "http-server"
}
