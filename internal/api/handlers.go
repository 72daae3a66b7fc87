// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tillmirror/internal/entities"
	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/offline"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/remote"
	"github.com/tomtom215/tillmirror/internal/session"
	"github.com/tomtom215/tillmirror/internal/store"
	"github.com/tomtom215/tillmirror/internal/validation"
	ws "github.com/tomtom215/tillmirror/internal/websocket"
)

const (
	maxBodySize       = 1 << 20
	defaultOplogLimit = 100
)

// NetworkState is the connectivity signal the host can read and push.
type NetworkState interface {
	IsOnline() bool
	Set(online bool)
}

// OplogReader lists recent operational log entries.
type OplogReader interface {
	Recent(ctx context.Context, limit int) ([]oplog.Entry, error)
	IsOpen() bool
}

// Handler serves the local API.
type Handler struct {
	engine      *offline.Engine
	registry    *entities.Registry
	network     NetworkState
	session     session.Provider
	oplog       OplogReader
	hub         *ws.Hub
	corsOrigins []string
	startTime   time.Time
}

// HandlerDeps lists what the handler needs. Oplog and Hub are optional.
type HandlerDeps struct {
	Engine      *offline.Engine
	Registry    *entities.Registry
	Network     NetworkState
	Session     session.Provider
	Oplog       OplogReader
	Hub         *ws.Hub
	CORSOrigins []string
}

// NewHandler creates a Handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		engine:      deps.Engine,
		registry:    deps.Registry,
		network:     deps.Network,
		session:     deps.Session,
		oplog:       deps.Oplog,
		hub:         deps.Hub,
		corsOrigins: deps.CORSOrigins,
		startTime:   time.Now(),
	}
}

// outletID resolves the outlet for a request: the X-Outlet-ID header, else
// the shell's current session.
func (h *Handler) outletID(r *http.Request) (string, error) {
	outlet := r.Header.Get(remote.OutletHeader)
	if outlet == "" {
		var err error
		if outlet, err = h.session.OutletID(r.Context()); err != nil {
			return "", err
		}
	}
	if !validation.IsKeySegment(outlet) {
		return "", fmt.Errorf("%w: outlet id %q", store.ErrInvalidKey, outlet)
	}
	return outlet, nil
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Healthy   bool           `json:"healthy"`
	Online    bool           `json:"online"`
	Store     string         `json:"store"`
	Oplog     string         `json:"oplog"`
	Pending   int            `json:"pending"`
	ByType    map[string]int `json:"by_type"`
	WSClients int            `json:"ws_clients"`
	Uptime    float64        `json:"uptime_seconds"`
}

// Health reports whether the local store is usable. The backend being
// unreachable does not make the agent unhealthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Healthy: true,
		Online:  h.network.IsOnline(),
		Store:   "ok",
		Oplog:   "disabled",
		Uptime:  time.Since(h.startTime).Seconds(),
	}

	byType, err := h.engine.PendingSyncCountByType(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check could not read the pending queue")
		resp.Healthy = false
		resp.Store = "error"
	} else {
		resp.ByType = byType
		for _, n := range byType {
			resp.Pending += n
		}
	}

	if h.oplog != nil {
		resp.Oplog = "ok"
		if !h.oplog.IsOpen() {
			resp.Oplog = "closed"
		}
	}
	if h.hub != nil {
		resp.WSClients = h.hub.GetClientCount()
	}

	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondData(w, status, resp)
}

// NetworkRequest is the body of PUT /network.
type NetworkRequest struct {
	Online *bool `json:"online" validate:"required"`
}

type networkResponse struct {
	Online bool `json:"online"`
}

// GetNetwork returns the connectivity signal.
func (h *Handler) GetNetwork(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, networkResponse{Online: h.network.IsOnline()})
}

// PutNetwork lets the shell push its own view of connectivity.
func (h *Handler) PutNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeError(w, r, verr)
		return
	}
	h.network.Set(*req.Online)
	respondData(w, http.StatusOK, networkResponse{Online: h.network.IsOnline()})
}

type pendingResponse struct {
	Count  int            `json:"count"`
	ByType map[string]int `json:"by_type"`
}

// Pending returns the pending write count for the badge.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	byType, err := h.engine.PendingSyncCountByType(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	total := 0
	for _, n := range byType {
		total += n
	}
	respondData(w, http.StatusOK, pendingResponse{Count: total, ByType: byType})
}

// SyncAll replays every entity type's queue.
func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.registry.SyncAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, res)
}

// SyncEntityType replays one entity type's queue.
func (h *Handler) SyncEntityType(w http.ResponseWriter, r *http.Request) {
	res, err := h.registry.SyncEntityType(r.Context(), pathParam(r, "entityType"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, res)
}

// ClearOutlet evicts one outlet's cached data.
func (h *Handler) ClearOutlet(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.ClearOutletCache(r.Context(), pathParam(r, "outletID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, stats)
}

// ClearAll drops every cache and the pending queue.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearAllData(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"cleared": true})
}

// OplogQuery holds GET /oplog parameters.
type OplogQuery struct {
	Limit int `validate:"min=1,max=1000"`
}

// Oplog lists recent operational log entries, newest first.
func (h *Handler) Oplog(w http.ResponseWriter, r *http.Request) {
	if h.oplog == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "operational log disabled", nil)
		return
	}

	q := OplogQuery{Limit: defaultOplogLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		q.Limit = n
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		writeError(w, r, verr)
		return
	}

	entries, err := h.oplog.Recent(r.Context(), q.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []oplog.Entry{}
	}
	respondData(w, http.StatusOK, entries)
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts no Origin (the shell's own process) or an
// origin from the CORS list.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", strconv.Quote(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers it with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "websocket service unavailable", nil)
		return
	}
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// pathParam returns a decoded URL parameter. Undecodable values are
// returned as sent and rejected by key validation downstream.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
