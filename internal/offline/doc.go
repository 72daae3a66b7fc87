// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package offline implements the read and write paths shared by every entity
service.

# Reads

FetchWithFallback calls the backend when the network signal says online and
mirrors list responses into the local store, replacing the previous mirror
for the (collection, outlet) pair in one step. When the signal says offline,
or the call fails, the mirror is served instead with the offline flag set.
An empty mirror after a failed call returns the call's error; an empty
mirror while offline returns an empty list.

FetchDetailWithFallback and FetchSnapshotWithFallback apply the same policy
to single records and to parametrised list queries.

# Writes

WriteWithQueue sends a mutation when online. When offline, or when the call
fails, the mutation is appended to the pending queue and a synthetic success
is returned with the pending flag set. Deletes are applied to the local
caches immediately in both cases; creates only appear after the next fetch.

SyncPending replays the queue for one entity type in insertion order. Each
record is independent: successes are deleted, failures stay untouched and are
retried on the next pass, indefinitely. Only one pass per entity type runs at
a time.

# Eviction

ClearOutletCache drops every cache for one outlet and keeps pending writes.
ClearAllData drops everything, pending writes included.
*/
package offline
