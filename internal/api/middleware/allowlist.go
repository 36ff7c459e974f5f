// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
)

// RequireIPAllowlist only lets through clients inside one of prefixes.
// An empty list allows everyone.
func RequireIPAllowlist(prefixes []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(prefixes) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, err := parseRemoteAddrIP(r.RemoteAddr)
			if err != nil {
				log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("api: failed to parse remote address")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			for _, prefix := range prefixes {
				if prefix.Contains(addr) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Warn().Str("ip", addr.String()).Msg("api: blocked client outside allowed networks")
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

func parseRemoteAddrIP(remoteAddr string) (netip.Addr, error) {
	trimmed := strings.TrimSpace(remoteAddr)
	if addr, err := netip.ParseAddr(strings.Trim(trimmed, "[]")); err == nil {
		return addr.Unmap(), nil
	}

	host, _, err := net.SplitHostPort(trimmed)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}
