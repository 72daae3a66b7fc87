// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package models defines the records persisted by the local store and the
envelope exchanged with the remote backend and the desktop shell.

Server payloads are opaque to this module: every record carries the
server representation as json.RawMessage and only the identity fields
(outlet, entity id) are interpreted.

# Envelope

The remote backend answers every call with

	{"status": "ok", "data": ..., "meta": ..., "message": "..."}

Responses served from the local mirror use the same shape with
"offline": true added, and queued writes add "pending": true, so the
shell renders cached data with the code it uses for live data.
*/
package models
