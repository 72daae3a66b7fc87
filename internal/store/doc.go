// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package store is the durable local store behind the offline cache: a single
BadgerDB holding the per-outlet list mirrors, the detail and snapshot caches,
and the pending write queue.

# Key Layout

	meta/schema_version                          uint64, big endian
	meta/collection/<name>                       registry entry (JSON)
	meta/seq/<name>                              badger sequences
	mirrorgen/<collection>/<outlet>              live generation (uint64)
	mirror/<collection>/<outlet>/<gen>/<id>      MirrorRecord
	detail/<collection>/<id>                     DetailRecord (global scope)
	detail/<collection>/<outlet>/<id>            DetailRecord (outlet scope)
	snapshot/<collection>/<outlet>/<query>       Snapshot
	pending/<entity_type>/<seq>                  PendingMutation

Outlet ids, entity ids and collection names are key segments and must not
contain '/'.

# Mirror Replacement

ReplaceMirror never edits a live mirror. It writes the new list under a
fresh generation, flips mirrorgen in one small transaction and only then
deletes the previous generation. Readers resolve the generation and scan it
inside a single read transaction, so a concurrent QueryByOutlet sees either
the complete old list or the complete new one, never a mix or an empty
interval. Generations orphaned by a crash between the flip and the cleanup
are removed by the Sweeper.

# Schema

The schema version and the collection registry live under meta/. Each
migration is additive: it registers collections or indexes and never
touches pending records, so upgrading can not drop unsynced writes. A
database written by a newer build is refused with ErrSchemaTooNew.
*/
package store
