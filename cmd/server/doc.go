// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package main is the entry point for the tillmirror agent.

The agent runs next to a point-of-sale front end on a till. It proxies the
front end's reads and writes to the backend REST API, mirrors every list it
sees into a local Badger store, and serves that mirror when the backend is
unreachable. Writes made offline are queued and replayed in order when the
network comes back.

# Application Architecture

	tillmirror (root)
	├── data-layer
	│   └── store-sweeper (orphaned generations, value-log GC)
	├── network-layer
	│   ├── network-probe
	│   ├── sync-replayer (on reconnect, optional interval)
	│   └── websocket-hub
	└── api-layer
	    └── http-server (/api/v1, /metrics)

Initialization order:

 1. Configuration: Koanf v2, defaults < config.yaml < environment
 2. Logging: zerolog
 3. Local store and operational log (BadgerDB)
 4. Remote client, connectivity probe, session provider
 5. Offline engine, entity registry, WebSocket hub
 6. HTTP router and server
 7. Supervisor tree

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains for
server.shutdown_timeout, then the store and the oplog are closed.

# Example Usage

	export REMOTE_BASE_URL=https://pos.example.com/api
	export SESSION_PATH=/var/lib/till/session.json
	./tillmirror
*/
package main
