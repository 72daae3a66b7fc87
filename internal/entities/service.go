// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package entities

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/offline"
	"github.com/tomtom215/tillmirror/internal/remote"
)

// ErrInvalidPayload is returned when a write body is not a JSON object.
var ErrInvalidPayload = errors.New("payload must be a JSON object")

// Doer performs one backend call. *remote.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req remote.Request) (*models.Envelope, error)
}

// Service serves one collection.
type Service struct {
	collection models.Collection
	engine     *offline.Engine
	client     Doer
}

// NewService creates a service for collection c.
func NewService(c models.Collection, engine *offline.Engine, client Doer) *Service {
	return &Service{collection: c, engine: engine, client: client}
}

// Collection returns the catalog entry the service is bound to.
func (s *Service) Collection() models.Collection {
	return s.collection
}

func (s *Service) itemPath(id string) string {
	return s.collection.Path + "/" + url.PathEscape(id)
}

func (s *Service) call(method, path, outlet string, query url.Values, body json.RawMessage) offline.RemoteCall {
	return func(ctx context.Context) (*models.Envelope, error) {
		return s.client.Do(ctx, remote.Request{
			Method:   method,
			Path:     path,
			Query:    query,
			OutletID: outlet,
			Body:     body,
		})
	}
}

// List returns the outlet's full collection list.
func (s *Service) List(ctx context.Context, outlet string) (*offline.Result, error) {
	return s.engine.FetchWithFallback(ctx, s.collection.Name, outlet,
		s.call(http.MethodGet, s.collection.Path, outlet, nil, nil))
}

// Get returns one entity.
func (s *Service) Get(ctx context.Context, outlet, id string) (*offline.Result, error) {
	return s.engine.FetchDetailWithFallback(ctx, s.collection.Name, outlet, id,
		s.call(http.MethodGet, s.itemPath(id), outlet, nil, nil))
}

// Query runs a parametrised list read (search, filters, paging). Results
// are cached per outlet under the encoded parameters. Empty params are a
// plain List.
func (s *Service) Query(ctx context.Context, outlet string, params url.Values) (*offline.Result, error) {
	if len(params) == 0 {
		return s.List(ctx, outlet)
	}
	// Encode sorts by key, so equivalent queries share one cache entry.
	key := params.Encode()
	return s.engine.FetchSnapshotWithFallback(ctx, s.collection.Name, outlet, key,
		s.call(http.MethodGet, s.collection.Path, outlet, params, nil))
}

// Create posts a new entity, or queues it when the backend is unreachable.
func (s *Service) Create(ctx context.Context, outlet string, payload json.RawMessage) (*offline.Result, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	return s.engine.WriteWithQueue(ctx, offline.WriteRequest{
		Collection: s.collection.Name,
		Op:         models.OpCreate,
		OutletID:   outlet,
		Payload:    payload,
		Call:       s.call(http.MethodPost, s.collection.Path, outlet, nil, payload),
	})
}

// Update replaces an entity, or queues the update.
func (s *Service) Update(ctx context.Context, outlet, id string, payload json.RawMessage) (*offline.Result, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	return s.engine.WriteWithQueue(ctx, offline.WriteRequest{
		Collection: s.collection.Name,
		Op:         models.OpUpdate,
		OutletID:   outlet,
		EntityID:   id,
		Payload:    payload,
		Call:       s.call(http.MethodPut, s.itemPath(id), outlet, nil, payload),
	})
}

// Delete removes an entity, or queues the delete. The local copy is
// dropped either way.
func (s *Service) Delete(ctx context.Context, outlet, id string) (*offline.Result, error) {
	return s.engine.WriteWithQueue(ctx, offline.WriteRequest{
		Collection: s.collection.Name,
		Op:         models.OpDelete,
		OutletID:   outlet,
		EntityID:   id,
		Call:       s.call(http.MethodDelete, s.itemPath(id), outlet, nil, nil),
	})
}

// Sync replays this collection's pending mutations.
func (s *Service) Sync(ctx context.Context) (models.SyncResult, error) {
	return s.engine.SyncPending(ctx, s.collection.EntityType, s.Replayer())
}

// Replayer returns the replayer used by Sync.
func (s *Service) Replayer() offline.Replayer {
	return offline.ReplayFunc(s.replay)
}

func (s *Service) replay(ctx context.Context, m models.PendingMutation) error {
	var method, path string
	switch m.Op {
	case models.OpCreate:
		method, path = http.MethodPost, s.collection.Path
	case models.OpUpdate:
		method, path = http.MethodPut, s.itemPath(m.EntityID)
	case models.OpDelete:
		method, path = http.MethodDelete, s.itemPath(m.EntityID)
	default:
		return fmt.Errorf("replay %s seq %d: unknown operation %q", m.EntityType, m.Seq, m.Op)
	}

	_, err := s.client.Do(ctx, remote.Request{
		Method:   method,
		Path:     path,
		OutletID: m.OutletID,
		Body:     m.Payload,
	})
	if err == nil {
		return nil
	}
	// A delete of something the backend no longer has is done.
	if rerr, ok := remote.AsError(err); ok && m.Op == models.OpDelete && rerr.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("replay %s %s seq %d: %w", m.Op, m.EntityType, m.Seq, err)
}

func checkPayload(payload json.RawMessage) error {
	var obj map[string]json.RawMessage
	if len(payload) == 0 || json.Unmarshal(payload, &obj) != nil || obj == nil {
		return ErrInvalidPayload
	}
	return nil
}
