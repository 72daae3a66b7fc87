// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import "github.com/tomtom215/tillmirror/internal/models"

// Outcome says where a result came from.
type Outcome int

const (
	// OutcomeOnline is a backend response passed through unchanged.
	OutcomeOnline Outcome = iota
	// OutcomeOffline is served from the local caches.
	OutcomeOffline
	// OutcomeQueued is a write accepted into the pending queue.
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOnline:
		return "online"
	case OutcomeOffline:
		return "offline"
	case OutcomeQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// Response is what callers hand to the shell. Online and offline results
// share the envelope shape; only the flags differ.
type Response interface {
	Envelope() models.Envelope
	Offline() bool
	Pending() bool
}

// Result is the Response produced by the engine.
type Result struct {
	Outcome  Outcome
	envelope models.Envelope
}

var _ Response = (*Result)(nil)

func onlineResult(env models.Envelope) *Result {
	return &Result{Outcome: OutcomeOnline, envelope: env}
}

func offlineResult(env models.Envelope) *Result {
	return &Result{Outcome: OutcomeOffline, envelope: env}
}

func queuedResult() *Result {
	return &Result{Outcome: OutcomeQueued, envelope: models.QueuedWrite()}
}

// Envelope returns the envelope with the offline and pending flags set from
// the outcome.
func (r *Result) Envelope() models.Envelope {
	env := r.envelope
	env.Offline = r.Offline()
	env.Pending = r.Pending()
	return env
}

// Offline reports whether the result did not come from the backend.
func (r *Result) Offline() bool {
	return r.Outcome != OutcomeOnline
}

// Pending reports whether the result is a queued write.
func (r *Result) Pending() bool {
	return r.Outcome == OutcomeQueued
}
