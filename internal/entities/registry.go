// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package entities

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/offline"
	"github.com/tomtom215/tillmirror/internal/store"
)

// ErrUnknownEntityType is returned by SyncEntityType for an unregistered tag.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Registry holds one Service per catalog collection.
type Registry struct {
	engine   *offline.Engine
	order    []string
	services map[string]*Service
	byType   map[string]*Service
}

// NewRegistry builds services for every collection in models.Catalog.
func NewRegistry(engine *offline.Engine, client Doer) *Registry {
	r := &Registry{
		engine:   engine,
		services: make(map[string]*Service, len(models.Catalog)),
		byType:   make(map[string]*Service, len(models.Catalog)),
	}
	for _, c := range models.Catalog {
		svc := NewService(c, engine, client)
		r.order = append(r.order, c.Name)
		r.services[c.Name] = svc
		r.byType[c.EntityType] = svc
	}
	return r
}

// Service returns the service for a collection name.
func (r *Registry) Service(collection string) (*Service, error) {
	svc, ok := r.services[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}
	return svc, nil
}

// Services returns every service in catalog order.
func (r *Registry) Services() []*Service {
	out := make([]*Service, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.services[name])
	}
	return out
}

// Replayers maps entity type to replayer for offline.Engine.SyncAll.
func (r *Registry) Replayers() map[string]offline.Replayer {
	out := make(map[string]offline.Replayer, len(r.byType))
	for t, svc := range r.byType {
		out[t] = svc.Replayer()
	}
	return out
}

// SyncAll replays the pending queue of every entity type.
func (r *Registry) SyncAll(ctx context.Context) (models.SyncResult, error) {
	return r.engine.SyncAll(ctx, r.Replayers())
}

// SyncEntityType replays one entity type's queue.
func (r *Registry) SyncEntityType(ctx context.Context, entityType string) (models.SyncResult, error) {
	svc, ok := r.byType[entityType]
	if !ok {
		return models.SyncResult{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return svc.Sync(ctx)
}
