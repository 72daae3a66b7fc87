// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/entities"
	"github.com/tomtom215/tillmirror/internal/validation"
)

// entityPath holds the path parameters of item routes.
type entityPath struct {
	Collection string `validate:"required,keysegment"`
	ID         string `validate:"required,keysegment"`
}

// collectionRequest resolves the service and outlet shared by every
// collection route. It writes the error response itself and returns ok=false
// on failure.
func (h *Handler) collectionRequest(w http.ResponseWriter, r *http.Request) (*entities.Service, string, bool) {
	svc, err := h.registry.Service(pathParam(r, "collection"))
	if err != nil {
		writeError(w, r, err)
		return nil, "", false
	}
	outlet, err := h.outletID(r)
	if err != nil {
		writeError(w, r, err)
		return nil, "", false
	}
	return svc, outlet, true
}

func (h *Handler) entityID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := entityPath{Collection: pathParam(r, "collection"), ID: pathParam(r, "id")}
	if verr := validation.ValidateStruct(&p); verr != nil {
		writeError(w, r, verr)
		return "", false
	}
	return p.ID, true
}

func readPayload(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "could not read request body", nil)
		return nil, false
	}
	return json.RawMessage(body), true
}

// ListCollection returns the outlet's list. Query parameters turn it into a
// cached query (search, filters, paging).
func (h *Handler) ListCollection(w http.ResponseWriter, r *http.Request) {
	svc, outlet, ok := h.collectionRequest(w, r)
	if !ok {
		return
	}
	res, err := svc.Query(r.Context(), outlet, r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondResult(w, res)
}

// GetEntity returns one entity.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	svc, outlet, ok := h.collectionRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	res, err := svc.Get(r.Context(), outlet, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondResult(w, res)
}

// CreateEntity creates an entity or queues the create.
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	svc, outlet, ok := h.collectionRequest(w, r)
	if !ok {
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	res, err := svc.Create(r.Context(), outlet, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondResult(w, res)
}

// UpdateEntity updates an entity or queues the update.
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	svc, outlet, ok := h.collectionRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	res, err := svc.Update(r.Context(), outlet, id, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondResult(w, res)
}

// DeleteEntity deletes an entity or queues the delete.
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	svc, outlet, ok := h.collectionRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	res, err := svc.Delete(r.Context(), outlet, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondResult(w, res)
}
