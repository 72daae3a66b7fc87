// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import "errors"

var (
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrNotFound is returned when a keyed lookup has no record.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidKey is returned for empty key segments or segments containing '/'.
	ErrInvalidKey = errors.New("invalid key segment")

	// ErrUnknownCollection is returned for collections missing from the registry.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrSchemaTooNew is returned when the on-disk schema is newer than this build.
	ErrSchemaTooNew = errors.New("store schema is newer than this build")
)
