// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package offline

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/metrics"
	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/store"
	"github.com/tomtom215/tillmirror/internal/validation"
)

// WriteRequest describes one mutation.
type WriteRequest struct {
	Collection string
	Op         models.Operation
	OutletID   string

	// EntityID is required for update and delete.
	EntityID string

	// Payload is the body replayed if the write is queued.
	Payload json.RawMessage

	// Call performs the write against the backend.
	Call RemoteCall
}

func (e *Engine) checkWrite(req *WriteRequest) (models.Collection, error) {
	c, err := e.store.Collection(req.Collection)
	if err != nil {
		return c, err
	}
	if !req.Op.Valid() {
		return c, fmt.Errorf("invalid operation %q", req.Op)
	}
	if err := checkOutlet(req.OutletID); err != nil {
		return c, err
	}
	if req.Op != models.OpCreate && !validation.IsKeySegment(req.EntityID) {
		return c, fmt.Errorf("%w: %s requires an entity id, got %q", store.ErrInvalidKey, req.Op, req.EntityID)
	}
	if req.Call == nil {
		return c, errors.New("write request has no remote call")
	}
	return c, nil
}

// WriteWithQueue performs req online when possible and queues it otherwise.
// A remote failure is treated like being offline. If the queue itself
// cannot be written the caller gets the storage error joined with the
// remote error, if any.
func (e *Engine) WriteWithQueue(ctx context.Context, req WriteRequest) (*Result, error) {
	c, err := e.checkWrite(&req)
	if err != nil {
		return nil, err
	}

	var remoteErr error
	if e.network.IsOnline() {
		env, err := callRemote(ctx, req.Call)
		if err == nil {
			e.applyLocal(ctx, c, req, true)
			metrics.RecordWrite(c.EntityType, string(req.Op), "online")
			return onlineResult(*env), nil
		}
		remoteErr = err
		logging.Ctx(ctx).Info().Err(err).Str("entity_type", c.EntityType).Str("op", string(req.Op)).Msg("Remote write failed, queueing")
	}

	m := &models.PendingMutation{
		OutletID:   req.OutletID,
		EntityType: c.EntityType,
		Op:         req.Op,
		EntityID:   req.EntityID,
		Payload:    req.Payload,
	}
	if err := e.store.AppendPending(ctx, m); err != nil {
		metrics.RecordWrite(c.EntityType, string(req.Op), "error")
		return nil, errors.Join(fmt.Errorf("queue %s %s: %w", req.Op, c.EntityType, err), remoteErr)
	}
	e.applyLocal(ctx, c, req, false)
	metrics.RecordWrite(c.EntityType, string(req.Op), "queued")

	msg := fmt.Sprintf("queued %s (seq %d)", req.Op, m.Seq)
	if remoteErr != nil {
		msg += ": " + remoteErr.Error()
	}
	e.recorder.Record(ctx, oplog.Entry{
		Kind:       oplog.KindWriteQueued,
		Collection: c.Name,
		EntityType: c.EntityType,
		OutletID:   req.OutletID,
		Message:    msg,
	})
	e.notifyPending(ctx)
	return queuedResult(), nil
}

// applyLocal mirrors a write into the caches. Deletes are applied whether
// or not the backend has seen them. A successful update invalidates the
// cached detail; a queued update keeps it so the entity stays readable
// offline. Creates are never inserted.
func (e *Engine) applyLocal(ctx context.Context, c models.Collection, req WriteRequest, acknowledged bool) {
	var errs []error
	switch req.Op {
	case models.OpDelete:
		errs = append(errs,
			e.store.DeleteEntity(ctx, c.Name, req.OutletID, req.EntityID),
			e.store.DeleteDetail(ctx, c.Name, req.OutletID, req.EntityID))
	case models.OpUpdate:
		if acknowledged {
			errs = append(errs, e.store.DeleteDetail(ctx, c.Name, req.OutletID, req.EntityID))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("collection", c.Name).Str("entity_id", req.EntityID).Msg("Failed to apply write to local cache")
	}
}
