// Vybz Circle - Real-Time Recommendation and Social Push Service
// Copyright 2026 Vybz Circle
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP surface: health endpoints, the metrics
// endpoint and the live connection upgrade.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/vybzcircle/realtime/internal/logging"
)

// APIResponse is the response wrapper for all JSON endpoints.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError carries error details for failed requests.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	Timestamp time.Time `json:"timestamp"`
}

// respondJSON writes a success response with the standard wrapper.
func respondJSON(w http.ResponseWriter, status int, data any) {
	resp := APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC()},
	}
	writeJSON(w, status, resp)
}

// respondError writes an error response with the standard wrapper.
func respondError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &APIMeta{Timestamp: time.Now().UTC()},
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}
