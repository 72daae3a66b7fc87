// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCircuitOpen is returned without contacting the backend while the
// circuit breaker is open or saturated in half-open state.
var ErrCircuitOpen = errors.New("remote: circuit breaker open")

// Error is a call the backend answered but did not accept: a non-2xx
// status, an undecodable body, or an envelope whose status is not ok.
type Error struct {
	StatusCode int
	Status     string // envelope status, empty when the body was not an envelope
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote: HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same call later may succeed.
// Client errors other than 408 and 429 will fail the same way again.
func (e *Error) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return false
	}
	return true
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
