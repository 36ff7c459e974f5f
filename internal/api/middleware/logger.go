// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var (
	RequestID       = chimiddleware.RequestID
	Recoverer       = chimiddleware.Recoverer
	RealIP          = chimiddleware.RealIP
	ThrottleBacklog = chimiddleware.ThrottleBacklog
)

// Logger writes one access line per request and turns a handler panic into a 500.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().
						Str("type", "error").
						Str("method", r.Method).
						Str("url", r.URL.RequestURI()).
						Str("panic", fmt.Sprint(rec)).
						Bytes("stack", debug.Stack()).
						Msg("recovered from handler panic")
					if ww.Status() == 0 {
						ww.WriteHeader(http.StatusInternalServerError)
					}
					return
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				logger.Trace().
					Str("type", "access").
					Str("method", r.Method).
					Str("url", r.URL.RequestURI()).
					Int("status", status).
					Str("remote_ip", r.RemoteAddr).
					Str("user_agent", r.UserAgent()).
					Str("request_id", chimiddleware.GetReqID(r.Context())).
					Int64("bytes_in", r.ContentLength).
					Int("bytes_out", ww.BytesWritten()).
					Float64("latency_ms", float64(time.Since(start).Microseconds())/1000).
					Msg("request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
