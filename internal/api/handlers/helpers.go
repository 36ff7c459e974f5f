// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/cronsched"
	"github.com/autobrr/groupfs/internal/services/filescan"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error: message,
	})
}

// DecodeJSONOptional decodes the request body into dest. An empty body is not an error.
// Returns false only on actual decode errors (error already sent to client).
func DecodeJSONOptional[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// ParseScope extracts and validates the {scope} URL parameter.
// Returns false if invalid (error already sent).
func ParseScope(w http.ResponseWriter, r *http.Request) (remote.Scope, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "scope"))
	if raw == "" {
		RespondError(w, http.StatusBadRequest, "scope is required")
		return 0, false
	}
	scope, err := remote.ParseScope(raw)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid scope")
		return 0, false
	}
	return scope, true
}

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, remote.ErrInvalidScope),
		errors.Is(err, models.ErrUnknownScanMode),
		errors.Is(err, filescan.ErrEmptySearchTerm),
		errors.Is(err, filescan.ErrNoFilesSelected),
		errors.Is(err, filescan.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, cronsched.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, remote.ErrConnectionUnavailable):
		return http.StatusServiceUnavailable
	}
	if _, ok := remote.AsError(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// RespondServiceError logs err and sends it with the mapped status.
func RespondServiceError(w http.ResponseWriter, err error, action string) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("action", action).Msg("api: request failed")
	}
	RespondError(w, status, err.Error())
}
