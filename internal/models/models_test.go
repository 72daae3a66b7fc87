// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestEnvelopeIsSuccess(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"ok", true},
		{"success", true},
		{"error", false},
		{"", false},
	}
	for _, tt := range tests {
		e := Envelope{Status: tt.status}
		if got := e.IsSuccess(); got != tt.want {
			t.Errorf("IsSuccess(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestEnvelopeDataIsList(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"array", `[{"guid":"a"}]`, true},
		{"padded array", "  \n[]", true},
		{"object", `{"guid":"a"}`, false},
		{"null", `null`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Envelope{Data: json.RawMessage(tt.data)}
			if got := e.DataIsList(); got != tt.want {
				t.Errorf("DataIsList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOfflineListShape(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		env, err := OfflineList(nil)
		if err != nil {
			t.Fatalf("OfflineList: %v", err)
		}
		out, _ := json.Marshal(env)
		if string(out) != `{"status":"ok","data":[],"offline":true}` {
			t.Errorf("unexpected envelope %s", out)
		}
	})

	t.Run("records", func(t *testing.T) {
		env, err := OfflineList([]json.RawMessage{json.RawMessage(`{"guid":"a"}`), json.RawMessage(`{"guid":"b"}`)})
		if err != nil {
			t.Fatalf("OfflineList: %v", err)
		}
		items, err := env.DataItems()
		if err != nil {
			t.Fatalf("DataItems: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if !env.Offline || env.Pending || env.Status != StatusOK {
			t.Errorf("unexpected flags %+v", env)
		}
	})
}

func TestQueuedWriteShape(t *testing.T) {
	out, err := json.Marshal(QueuedWrite())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"status":"ok","offline":true,"pending":true}` {
		t.Errorf("unexpected envelope %s", out)
	}
}

func TestCatalog(t *testing.T) {
	seenNames := map[string]bool{}
	seenTypes := map[string]bool{}
	for _, c := range Catalog {
		if seenNames[c.Name] || seenTypes[c.EntityType] {
			t.Errorf("duplicate catalog entry %+v", c)
		}
		seenNames[c.Name] = true
		seenTypes[c.EntityType] = true
		if strings.Contains(c.Name, "/") {
			t.Errorf("collection name %q must not contain '/'", c.Name)
		}
		if c.AddedIn == 0 {
			t.Errorf("collection %q has no schema version", c.Name)
		}
	}

	c, ok := LookupEntityType("checkin")
	if !ok || c.Name != "checkins" {
		t.Errorf("LookupEntityType(checkin) = %+v, %v", c, ok)
	}
	if _, ok := LookupCollection("playlists"); ok {
		t.Error("unexpected collection playlists")
	}
}

func TestOperationValid(t *testing.T) {
	for _, op := range []Operation{OpCreate, OpUpdate, OpDelete} {
		if !op.Valid() {
			t.Errorf("%q should be valid", op)
		}
	}
	if Operation("upsert").Valid() {
		t.Error("upsert should be invalid")
	}
}

func TestSyncResultAdd(t *testing.T) {
	r := SyncResult{Synced: 1}
	r.Add(SyncResult{Synced: 2, Failed: 1})
	if r.Synced != 3 || r.Failed != 1 {
		t.Errorf("unexpected result %+v", r)
	}
}
