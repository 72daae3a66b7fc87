// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/metrics"
	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/store"
	"github.com/tomtom215/tillmirror/internal/validation"
)

// checkOutlet rejects outlet ids that cannot be used as store keys.
func checkOutlet(outlet string) error {
	if !validation.IsKeySegment(outlet) {
		return fmt.Errorf("%w: outlet id %q", store.ErrInvalidKey, outlet)
	}
	return nil
}

// callRemote runs call and turns a nil envelope into an error.
func callRemote(ctx context.Context, call RemoteCall) (*models.Envelope, error) {
	env, err := call(ctx)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, ErrNoEnvelope
	}
	return env, nil
}

// FetchWithFallback reads a collection list for outlet.
//
// Online success with list data replaces the outlet's mirror and returns
// the backend envelope unchanged. A failure to write the mirror is logged
// and does not fail the read.
func (e *Engine) FetchWithFallback(ctx context.Context, collection, outlet string, call RemoteCall) (*Result, error) {
	if _, err := e.store.Collection(collection); err != nil {
		return nil, err
	}
	if err := checkOutlet(outlet); err != nil {
		return nil, err
	}

	if !e.network.IsOnline() {
		return e.mirrorFallback(ctx, collection, outlet, nil)
	}

	env, err := callRemote(ctx, call)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("collection", collection).Str("outlet_id", outlet).Msg("Remote list failed, trying mirror")
		return e.mirrorFallback(ctx, collection, outlet, err)
	}

	if env.IsSuccess() && env.DataIsList() {
		if err := e.replaceMirror(ctx, collection, outlet, env); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("collection", collection).Str("outlet_id", outlet).Msg("Failed to mirror list response")
		}
	}
	metrics.RecordFetch(collection, "online")
	return onlineResult(*env), nil
}

func (e *Engine) replaceMirror(ctx context.Context, collection, outlet string, env *models.Envelope) error {
	items, err := env.DataItems()
	if err != nil {
		return fmt.Errorf("split list data: %w", err)
	}
	records := make([]models.MirrorRecord, len(items))
	taken := make(map[string]struct{}, len(items))
	for i, item := range items {
		records[i] = models.MirrorRecord{
			OutletID: outlet,
			EntityID: uniqueEntityID(taken, entityID(collection, i, item), collection, i),
			Payload:  item,
		}
	}
	return e.store.ReplaceMirror(ctx, collection, outlet, records)
}

// mirrorFallback serves the outlet's mirror. callErr is nil when the network
// signal short-circuited the call.
func (e *Engine) mirrorFallback(ctx context.Context, collection, outlet string, callErr error) (*Result, error) {
	records, err := e.store.QueryByOutlet(ctx, collection, outlet)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("collection", collection).Str("outlet_id", outlet).Msg("Mirror read failed, treating as cache miss")
		if callErr != nil {
			metrics.RecordFetch(collection, "error")
			return nil, callErr
		}
		metrics.RecordFetch(collection, "miss")
		return nil, fmt.Errorf("%w: %w", ErrNoCacheAvailable, err)
	}

	if len(records) == 0 {
		if callErr != nil {
			metrics.RecordFetch(collection, "error")
			return nil, callErr
		}
		env, err := models.OfflineList(nil)
		if err != nil {
			return nil, err
		}
		metrics.RecordFetch(collection, "miss")
		return offlineResult(env), nil
	}

	items := make([]json.RawMessage, len(records))
	for i := range records {
		items[i] = records[i].Payload
	}
	env, err := models.OfflineList(items)
	if err != nil {
		return nil, fmt.Errorf("encode mirrored list: %w", err)
	}

	e.recordFallback(ctx, collection, outlet, callErr, fmt.Sprintf("served %d mirrored records", len(records)))
	return offlineResult(env), nil
}

// recordFallback logs a read served from cache.
func (e *Engine) recordFallback(ctx context.Context, collection, outlet string, callErr error, message string) {
	kind, outcome := oplog.KindFetchOffline, "offline"
	if callErr != nil {
		kind, outcome = oplog.KindFetchFallback, "fallback"
		message += ": " + callErr.Error()
	}
	metrics.RecordFetch(collection, outcome)
	e.recorder.Record(ctx, oplog.Entry{Kind: kind, Collection: collection, OutletID: outlet, Message: message})
}

// FetchDetailWithFallback reads one entity. Online success caches the
// record in the detail cache. Offline or on failure the detail cache is
// consulted first, then the list mirror. With nothing cached an offline read
// returns ErrNoCacheAvailable and a failed read returns the call's error.
func (e *Engine) FetchDetailWithFallback(ctx context.Context, collection, outlet, id string, call RemoteCall) (*Result, error) {
	if _, err := e.store.Collection(collection); err != nil {
		return nil, err
	}
	if err := checkOutlet(outlet); err != nil {
		return nil, err
	}
	if !validation.IsKeySegment(id) {
		return nil, fmt.Errorf("%w: entity id %q", store.ErrInvalidKey, id)
	}

	if !e.network.IsOnline() {
		return e.detailFallback(ctx, collection, outlet, id, nil)
	}

	env, err := callRemote(ctx, call)
	if err != nil {
		return e.detailFallback(ctx, collection, outlet, id, err)
	}

	if env.IsSuccess() && len(bytes.TrimSpace(env.Data)) > 0 && !env.DataIsList() {
		rec := models.DetailRecord{OutletID: outlet, EntityID: id, Payload: env.Data}
		if err := e.store.PutDetail(ctx, collection, rec); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("collection", collection).Str("entity_id", id).Msg("Failed to cache detail response")
		}
	}
	metrics.RecordFetch(collection, "online")
	return onlineResult(*env), nil
}

func (e *Engine) detailFallback(ctx context.Context, collection, outlet, id string, callErr error) (*Result, error) {
	payload, err := e.cachedDetail(ctx, collection, outlet, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Str("collection", collection).Str("entity_id", id).Msg("Detail read failed, treating as cache miss")
		}
		if callErr != nil {
			metrics.RecordFetch(collection, "error")
			return nil, callErr
		}
		metrics.RecordFetch(collection, "miss")
		return nil, fmt.Errorf("%w: %s %s", ErrNoCacheAvailable, collection, id)
	}

	e.recordFallback(ctx, collection, outlet, callErr, "served cached "+collection+" "+id)
	return offlineResult(models.Envelope{Status: models.StatusOK, Data: payload}), nil
}

// cachedDetail prefers the detail cache and falls back to the list mirror.
func (e *Engine) cachedDetail(ctx context.Context, collection, outlet, id string) (json.RawMessage, error) {
	rec, err := e.store.GetDetail(ctx, collection, outlet, id)
	if err == nil {
		return rec.Payload, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	mirrored, err := e.store.GetByID(ctx, collection, outlet, id)
	if err != nil {
		return nil, err
	}
	return mirrored.Payload, nil
}

// FetchSnapshotWithFallback reads a parametrised list query (search,
// filter, page). The whole envelope is cached under query; meta such as
// totals and page counts is kept.
func (e *Engine) FetchSnapshotWithFallback(ctx context.Context, collection, outlet, query string, call RemoteCall) (*Result, error) {
	if _, err := e.store.Collection(collection); err != nil {
		return nil, err
	}
	if err := checkOutlet(outlet); err != nil {
		return nil, err
	}

	if !e.network.IsOnline() {
		return e.snapshotFallback(ctx, collection, outlet, query, nil)
	}

	env, err := callRemote(ctx, call)
	if err != nil {
		return e.snapshotFallback(ctx, collection, outlet, query, err)
	}
	if env.IsSuccess() {
		if err := e.store.PutSnapshot(ctx, collection, outlet, query, *env); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("collection", collection).Str("query", query).Msg("Failed to cache query response")
		}
	}
	metrics.RecordFetch(collection, "online")
	return onlineResult(*env), nil
}

func (e *Engine) snapshotFallback(ctx context.Context, collection, outlet, query string, callErr error) (*Result, error) {
	snap, err := e.store.GetSnapshot(ctx, collection, outlet, query)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Str("collection", collection).Str("query", query).Msg("Snapshot read failed, treating as cache miss")
		}
		if callErr != nil {
			metrics.RecordFetch(collection, "error")
			return nil, callErr
		}
		if !errors.Is(err, store.ErrNotFound) {
			metrics.RecordFetch(collection, "miss")
			return nil, fmt.Errorf("%w: %w", ErrNoCacheAvailable, err)
		}
		env, err := models.OfflineList(nil)
		if err != nil {
			return nil, err
		}
		metrics.RecordFetch(collection, "miss")
		return offlineResult(env), nil
	}

	e.recordFallback(ctx, collection, outlet, callErr, "served cached query "+query)
	return offlineResult(snap.Envelope), nil
}

type idFields struct {
	GUID json.RawMessage `json:"guid"`
	ID   json.RawMessage `json:"id"`
}

// entityID picks the mirror key for a list item: guid, then id, then
// "<collection>-<index>". Values unusable as a key fall through.
func entityID(collection string, index int, item json.RawMessage) string {
	var f idFields
	if err := json.Unmarshal(item, &f); err == nil {
		for _, raw := range []json.RawMessage{f.GUID, f.ID} {
			if id := scalarString(raw); validation.IsKeySegment(id) {
				return id
			}
		}
	}
	return collection + "-" + strconv.Itoa(index)
}

// uniqueEntityID keeps every item of one response under its own key. A
// repeated id falls back to the positional id, suffixed until free.
func uniqueEntityID(taken map[string]struct{}, id, collection string, index int) string {
	if _, dup := taken[id]; dup {
		id = collection + "-" + strconv.Itoa(index)
		for n := 1; ; n++ {
			if _, dup := taken[id]; !dup {
				break
			}
			id = collection + "-" + strconv.Itoa(index) + "-" + strconv.Itoa(n)
		}
	}
	taken[id] = struct{}{}
	return id
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw)
	}
	return ""
}
