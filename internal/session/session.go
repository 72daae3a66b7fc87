// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

// Package session resolves the outlet the till is currently working in. The
// desktop shell owns the session; this package only reads it, on every call,
// so an outlet switch is picked up without restarting the agent.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoOutlet is returned when no outlet is selected.
var ErrNoOutlet = errors.New("no outlet selected")

// Provider returns the current outlet id.
type Provider interface {
	OutletID(ctx context.Context) (string, error)
}

// Session is the subset of the shell's session document the agent reads.
type Session struct {
	OutletID string `json:"outlet_id"`
	UserID   string `json:"user_id,omitempty"`
}

// FileProvider reads the shell's session file on every call.
type FileProvider struct {
	path string
}

// NewFileProvider returns a provider for the session file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// OutletID implements Provider. A missing file means nobody is logged in.
func (p *FileProvider) OutletID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoOutlet
	}
	if err != nil {
		return "", fmt.Errorf("read session %s: %w", p.path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("decode session %s: %w", p.path, err)
	}
	outlet := strings.TrimSpace(s.OutletID)
	if outlet == "" {
		return "", ErrNoOutlet
	}
	return outlet, nil
}

// Static always returns the same outlet.
type Static string

// OutletID implements Provider.
func (s Static) OutletID(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoOutlet
	}
	return string(s), nil
}
