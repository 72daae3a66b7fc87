// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// MirrorRecord is one cached list item for an outlet.
type MirrorRecord struct {
	OutletID string          `json:"outlet_id"`
	EntityID string          `json:"entity_id"`
	Payload  json.RawMessage `json:"payload"`

	// Position is the item's index in the server response that produced
	// this generation; reads return records in server order.
	Position int `json:"position"`

	// UpdatedAt is informational only. Mirror writes are last-write-wins.
	UpdatedAt time.Time `json:"updated_at"`
}

// DetailRecord is the deep, single-entity cache kept apart from the list
// mirror. OutletID is stored even for collections whose detail keys are
// global so outlet eviction can find them.
type DetailRecord struct {
	OutletID  string          `json:"outlet_id"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Snapshot is a list-shaped cache: the full envelope of a parametrised list
// query (search, filter, page) stored under a canonical query key.
type Snapshot struct {
	OutletID  string    `json:"outlet_id"`
	Key       string    `json:"key"`
	Envelope  Envelope  `json:"envelope"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Operation is the kind of mutation carried by a PendingMutation.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// PendingMutation is a write that has not been acknowledged by the backend.
// Records are never rewritten: a successful replay deletes them, a failed
// replay leaves them exactly as they were.
type PendingMutation struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	OutletID   string          `json:"outlet_id"`
	EntityType string          `json:"entity_type"`
	Op         Operation       `json:"op"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Synced     bool            `json:"synced"`
}

// SyncResult is the outcome of one replay pass.
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Add accumulates other into r.
func (r *SyncResult) Add(other SyncResult) {
	r.Synced += other.Synced
	r.Failed += other.Failed
}
