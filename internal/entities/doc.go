// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package entities binds each mirrored backend collection to the offline
engine.

A Service is built per catalog entry (products, employees, transactions,
expenses, purchases, shifts, customers, checkins). Reads go through the
engine's fallback paths and writes through the pending queue, so callers
get the same envelope whether the backend answered or the local cache did.

	reg := entities.NewRegistry(engine, client)
	svc, _ := reg.Service("products")
	res, err := svc.List(ctx, outletID)

Queued mutations are replayed against the backend with the outlet they
were recorded under:

	create  POST   /<path>
	update  PUT    /<path>/<id>
	delete  DELETE /<path>/<id>
*/
package entities
