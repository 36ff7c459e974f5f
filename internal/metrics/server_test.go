// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/groupfs/internal/remote"
)

func TestParseBasicAuthUsers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "single", raw: "prom:scrape", want: map[string]string{"prom": "scrape"}},
		{name: "trimmed pairs", raw: " prom:a , grafana:b ", want: map[string]string{"prom": "a", "grafana": "b"}},
		{name: "malformed entries skipped", raw: "prom:a,nocolon,:nouser", want: map[string]string{"prom": "a"}},
		{name: "password keeps colons", raw: "prom:a:b", want: map[string]string{"prom": "a:b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseBasicAuthUsers(tt.raw))
		})
	}
}

func TestMetricsEndpointExportsScanState(t *testing.T) {
	t.Parallel()

	handle := remote.NewHandle(nil)
	handle.Set(&nopClient{})
	next := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	jobs := staticJobs{{Key: "42:0 4 * * *:delete", Scope: 42, Schedule: "0 4 * * *", NextRun: &next}}

	manager := NewManager(handle, jobs)
	manager.Scan().RecordCheck(42, "invalid")
	manager.Scan().RecordDelete(42, true)

	server := NewMetricsServer(manager, "127.0.0.1", 9074, "")
	assert.Equal(t, "127.0.0.1:9074", server.server.Addr)

	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{
		"groupfs_remote_connection_status 1",
		"groupfs_scheduler_jobs_registered 1",
		`groupfs_scan_checks_total{scope="42",status="invalid"} 1`,
		`groupfs_scan_deletes_total{result="deleted",scope="42"} 1`,
		`groupfs_scheduler_job_next_run_timestamp_seconds{job="42:0 4 * * *:delete",scope="42"}`,
	} {
		assert.Contains(t, body, want)
	}

	rec = httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpointBasicAuth(t *testing.T) {
	t.Parallel()

	server := NewMetricsServer(NewManager(nil, nil), "127.0.0.1", 9074, "prom:scrape")

	tests := []struct {
		name     string
		user     string
		pass     string
		wantCode int
	}{
		{name: "no credentials", wantCode: http.StatusUnauthorized},
		{name: "wrong password", user: "prom", pass: "nope", wantCode: http.StatusUnauthorized},
		{name: "unknown user", user: "grafana", pass: "scrape", wantCode: http.StatusUnauthorized},
		{name: "valid", user: "prom", pass: "scrape", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			server.server.Handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="metrics"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestMetricsServerShutdown(t *testing.T) {
	t.Parallel()

	server := NewMetricsServer(NewManager(nil, nil), "127.0.0.1", 0, "")

	done := make(chan error, 1)
	go func() { done <- server.ListenAndServe() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "a closed server is not an error")
	case <-ctx.Done():
		t.Fatal("metrics server did not stop")
	}
}
