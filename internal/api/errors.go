// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tomtom215/tillmirror/internal/entities"
	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/offline"
	"github.com/tomtom215/tillmirror/internal/remote"
	"github.com/tomtom215/tillmirror/internal/session"
	"github.com/tomtom215/tillmirror/internal/store"
	"github.com/tomtom215/tillmirror/internal/validation"
)

// apiFailure is an error classified for the response.
type apiFailure struct {
	status  int
	code    string
	message string
	details map[string]interface{}
}

// classifyError maps engine, store and remote errors to HTTP responses.
func classifyError(err error) apiFailure {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		apiErr := verr.ToAPIError()
		return apiFailure{http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details}
	}

	switch {
	case errors.Is(err, session.ErrNoOutlet):
		return apiFailure{status: http.StatusBadRequest, code: "NO_OUTLET", message: "no outlet selected"}
	case errors.Is(err, store.ErrInvalidKey):
		return apiFailure{status: http.StatusBadRequest, code: "INVALID_ID", message: err.Error()}
	case errors.Is(err, entities.ErrInvalidPayload):
		return apiFailure{status: http.StatusBadRequest, code: "INVALID_PAYLOAD", message: err.Error()}
	case errors.Is(err, store.ErrUnknownCollection), errors.Is(err, entities.ErrUnknownEntityType):
		return apiFailure{status: http.StatusNotFound, code: "NOT_FOUND", message: err.Error()}
	case errors.Is(err, offline.ErrSyncInProgress):
		return apiFailure{status: http.StatusConflict, code: "SYNC_IN_PROGRESS", message: err.Error()}
	case errors.Is(err, offline.ErrNoCacheAvailable):
		return apiFailure{status: http.StatusServiceUnavailable, code: "NO_CACHE", message: "offline and nothing cached"}
	case errors.Is(err, store.ErrStoreClosed):
		return apiFailure{status: http.StatusServiceUnavailable, code: "STORE_CLOSED", message: "local store is closed"}
	case errors.Is(err, remote.ErrCircuitOpen):
		return apiFailure{status: http.StatusServiceUnavailable, code: "CIRCUIT_OPEN", message: "backend temporarily unavailable"}
	}

	if rerr, ok := remote.AsError(err); ok {
		msg := rerr.Message
		if msg == "" {
			msg = rerr.Error()
		}
		return apiFailure{
			status:  http.StatusBadGateway,
			code:    "REMOTE_ERROR",
			message: msg,
			details: map[string]interface{}{"remote_status": rerr.StatusCode},
		}
	}

	var uerr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apiFailure{status: http.StatusGatewayTimeout, code: "TIMEOUT", message: "request timed out"}
	case errors.As(err, &uerr), errors.Is(err, offline.ErrNoEnvelope):
		return apiFailure{status: http.StatusBadGateway, code: "REMOTE_UNAVAILABLE", message: "backend could not be reached"}
	}

	return apiFailure{status: http.StatusInternalServerError, code: "INTERNAL_ERROR", message: "internal error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	f := classifyError(err)
	ev := logging.Ctx(r.Context()).Debug()
	if f.status >= http.StatusInternalServerError && f.status != http.StatusServiceUnavailable {
		ev = logging.Ctx(r.Context()).Warn()
	}
	ev.Err(err).Int("status", f.status).Str("path", r.URL.Path).Msg("Request failed")
	respondError(w, f.status, f.code, f.message, f.details)
}
