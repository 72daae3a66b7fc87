// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package websocket pushes badge events to the desktop shell.

The Hub fans out three message types:

	pending         {"count": 3, "by_type": {"expense": 2, "product": 1}}
	network         {"online": false, "timestamp": "..."}
	sync_completed  {"entity_type": "expense", "synced": 2, "failed": 0, "timestamp": "..."}

Hub implements offline.Notifier, so the engine reports queue changes and
finished sync passes directly, and its NetworkChanged method is registered
as a netstatus listener. A client that connects receives the latest
pending and network messages immediately so the badge is correct before
the next change.

Clients may send {"type": "ping"} and get {"type": "pong"} back. Nothing
else sent by a client is interpreted.

The hub runs as a suture service (Serve); cancelling its context closes
every client.
*/
package websocket
