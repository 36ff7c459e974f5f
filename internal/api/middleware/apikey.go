// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
)

const HeaderAPIKey = "X-API-Key"

// RequireAPIKey rejects requests without a matching X-API-Key header.
// An empty key disables the check.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAPIKey)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				log.Warn().Str("remote_addr", r.RemoteAddr).Str("path", r.URL.Path).Msg("api: rejected request with missing or invalid api key")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyFromQuery promotes an API key query param into the X-API-Key header.
// Mount it only on routes that may be called from places that cannot set headers.
func APIKeyFromQuery(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(HeaderAPIKey) == "" {
				if apiKey := r.URL.Query().Get(param); apiKey != "" {
					r.Header.Set(HeaderAPIKey, apiKey)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
