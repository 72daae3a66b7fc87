// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSession(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFileProviderReadsOnEveryCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	p := NewFileProvider(path)
	ctx := context.Background()

	if _, err := p.OutletID(ctx); !errors.Is(err, ErrNoOutlet) {
		t.Errorf("missing file: %v, want ErrNoOutlet", err)
	}

	writeSession(t, path, `{"outlet_id":"out-1","user_id":"u-7"}`)
	got, err := p.OutletID(ctx)
	if err != nil || got != "out-1" {
		t.Errorf("OutletID = %q, %v", got, err)
	}

	writeSession(t, path, `{"outlet_id":"out-2"}`)
	got, err = p.OutletID(ctx)
	if err != nil || got != "out-2" {
		t.Errorf("outlet switch not picked up: %q, %v", got, err)
	}

	writeSession(t, path, `{"outlet_id":"  "}`)
	if _, err := p.OutletID(ctx); !errors.Is(err, ErrNoOutlet) {
		t.Errorf("blank outlet: %v, want ErrNoOutlet", err)
	}

	writeSession(t, path, `{not json`)
	if _, err := p.OutletID(ctx); err == nil || errors.Is(err, ErrNoOutlet) {
		t.Errorf("corrupt session should be a decode error, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	if got, err := Static("out-1").OutletID(context.Background()); err != nil || got != "out-1" {
		t.Errorf("Static = %q, %v", got, err)
	}
	if _, err := Static("").OutletID(context.Background()); !errors.Is(err, ErrNoOutlet) {
		t.Errorf("empty Static: %v", err)
	}
}
