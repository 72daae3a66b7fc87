// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package supervisor runs the agent's long-lived services under a suture
tree.

	tillmirror (root)
	├── data-layer      store sweeper
	├── network-layer   connectivity probe, sync replayer, websocket hub
	└── api-layer       HTTP server

A service that returns an error is restarted with suture's backoff; a
failure in the network layer does not stop the API from serving cached
data. Supervisor events are logged through sutureslog over the zerolog
slog adapter.
*/
package supervisor
