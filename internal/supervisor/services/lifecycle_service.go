// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package services

import (
	"context"
	"fmt"
)

// StartStopper is the lifecycle shared by *store.Sweeper and
// *netstatus.Probe.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// LifecycleService adapts a StartStopper to suture: Start, wait for the
// context, Stop. Stop blocks until the component's goroutines exit.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service. A Start failure is returned so suture
// restarts the service with backoff.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

func (s *LifecycleService) String() string {
	return s.name
}
