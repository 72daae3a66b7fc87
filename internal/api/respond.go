// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/offline"
	"github.com/tomtom215/tillmirror/internal/validation"
)

// dataResponse wraps agent-generated data in the envelope shape.
type dataResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

type errorResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Error   *validation.APIError `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	w.Write(data)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, dataResponse{Status: models.StatusOK, Data: data})
}

// respondResult writes an engine result. Queued writes answer 202.
func respondResult(w http.ResponseWriter, res offline.Response) {
	status := http.StatusOK
	if res.Pending() {
		status = http.StatusAccepted
	}
	respondJSON(w, status, res.Envelope())
}

func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, errorResponse{
		Status:  models.StatusError,
		Message: message,
		Error:   &validation.APIError{Code: code, Message: message, Details: details},
	})
}
