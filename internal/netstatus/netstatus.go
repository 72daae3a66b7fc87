// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

// Package netstatus provides the online/offline signal consulted before
// every remote call. Consumers depend on the Provider interface so tests can
// pin the state.
package netstatus

import (
	"sync"
	"sync/atomic"
)

// Provider reports whether the remote backend is believed reachable.
type Provider interface {
	IsOnline() bool
}

// Listener is called with the new state after every transition.
type Listener func(online bool)

// Static is a Provider whose state only changes through Set. The host shell
// can push its own view of connectivity through it.
type Static struct {
	online atomic.Bool

	mu        sync.Mutex
	listeners []Listener
}

// NewStatic returns a Static provider with the given initial state.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// IsOnline implements Provider.
func (s *Static) IsOnline() bool {
	return s.online.Load()
}

// Set changes the state and notifies listeners when it actually changed.
func (s *Static) Set(online bool) {
	if s.online.Swap(online) == online {
		return
	}
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(online)
	}
}

// Subscribe registers a transition listener.
func (s *Static) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}
