// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import "errors"

var (
	// ErrNoCacheAvailable is returned when a read cannot reach the backend
	// and nothing usable is cached.
	ErrNoCacheAvailable = errors.New("offline and no cached data available")

	// ErrSyncInProgress is returned when a replay pass for the same entity
	// type is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNoEnvelope is returned when a remote call reports success but
	// produces no envelope.
	ErrNoEnvelope = errors.New("remote call returned no envelope")
)
