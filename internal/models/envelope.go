// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package models

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Envelope status values.
const (
	StatusOK      = "ok"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the response wrapper used by the remote backend and returned
// unchanged (apart from the offline/pending flags) to the shell.
type Envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Meta    json.RawMessage `json:"meta,omitempty"`
	Message string          `json:"message,omitempty"`
	Offline bool            `json:"offline,omitempty"`
	Pending bool            `json:"pending,omitempty"`
}

// IsSuccess reports whether the backend accepted the call. The backend has
// used both "ok" and "success" over time.
func (e *Envelope) IsSuccess() bool {
	return e.Status == StatusOK || e.Status == StatusSuccess
}

// DataIsList reports whether Data holds a JSON array.
func (e *Envelope) DataIsList() bool {
	trimmed := bytes.TrimLeft(e.Data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// DataItems splits a list-shaped Data field into its elements.
func (e *Envelope) DataItems() ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(e.Data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// emptyList is the data field of an offline response with nothing cached.
var emptyList = json.RawMessage(`[]`)

// OfflineList builds the envelope returned when a list read is served from
// the mirror. A nil or empty items slice yields "data": [].
func OfflineList(items []json.RawMessage) (Envelope, error) {
	if len(items) == 0 {
		return Envelope{Status: StatusOK, Data: emptyList, Offline: true}, nil
	}
	data, err := json.MarshalNoEscape(items)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Status: StatusOK, Data: data, Offline: true}, nil
}

// QueuedWrite is the synthetic envelope returned when a mutation was
// appended to the pending queue instead of reaching the backend.
func QueuedWrite() Envelope {
	return Envelope{Status: StatusOK, Offline: true, Pending: true}
}
