// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package api is the loopback HTTP surface used by the desktop shell.

Routes (all under /api/v1 except /metrics):

	GET    /health                              store, network and queue state
	GET    /network                             current connectivity signal
	PUT    /network                             host push {"online": bool}
	GET    /sync/pending                        {count, by_type}
	POST   /sync                                replay every entity type
	POST   /sync/{entityType}                   replay one entity type
	POST   /cache/outlets/{outletID}/clear      evict one outlet's cached data
	POST   /cache/clear-all                     drop all cached data and the queue
	GET    /oplog?limit=                        recent operational log entries
	GET    /collections/{collection}            list (query params run a cached query)
	GET    /collections/{collection}/{id}       detail
	POST   /collections/{collection}            create
	PUT    /collections/{collection}/{id}       update
	DELETE /collections/{collection}/{id}       delete
	GET    /ws                                  badge events (see package websocket)
	GET    /metrics                             Prometheus

Collection responses are the backend envelope, with "offline" and
"pending" set when the data came from the local cache or the write was
queued. The outlet is taken from the X-Outlet-ID header when present and
from the shell's session otherwise.

Error responses use {"status": "error", "message": ..., "error": {"code": ...}}:

	400  validation failures, missing outlet, malformed ids or bodies
	404  unknown collection or entity type
	409  a sync pass for the entity type is already running
	502  the backend rejected the call or could not be reached
	503  offline with nothing cached, or the backend circuit is open

When server.auth_secret is set, every route except /health and /metrics
requires an HS256 bearer token. The websocket route also accepts the token
in the access_token query parameter.
*/
package api
