// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/groupfs/internal/domain"
	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/remote/remotetest"
	"github.com/autobrr/groupfs/internal/services/cronsched"
	"github.com/autobrr/groupfs/internal/services/filescan"
)

const testAPIKey = "test-key"

func newTestDependencies(t *testing.T, cfg *domain.Config) *Dependencies {
	t.Helper()

	store := remotetest.NewStore()
	store.AddFolder("", "/docs", "docs")
	store.AddFiles("/docs", "d", 2)

	handle := remote.NewHandle(nil)
	handle.Set(store)

	files := filescan.NewService(handle, filescan.Options{}, nil)
	scheduler := cronsched.New(cronsched.DefaultConfig(), files, nil)

	if cfg == nil {
		cfg = &domain.Config{APIKey: testAPIKey}
	}
	return &Dependencies{
		Config:    cfg,
		Scheduler: scheduler,
		Files:     files,
	}
}

func newTestRouter(t *testing.T, cfg *domain.Config) http.Handler {
	t.Helper()
	router, err := NewServer(newTestDependencies(t, cfg)).Handler()
	require.NoError(t, err)
	return router
}

func TestRouterRegistersRoutes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	mux, ok := router.(chi.Routes)
	require.True(t, ok)

	var got []string
	err := chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+strings.TrimSuffix(route, "/"))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(got)

	want := []string{
		"DELETE /api/scopes/{scope}/files",
		"GET /api/healthz",
		"GET /api/healthz/liveness",
		"GET /api/healthz/readiness",
		"GET /api/jobs",
		"GET /api/scopes/{scope}/files",
		"GET /api/scopes/{scope}/quota",
		"GET /api/version",
		"GET /api/version/latest",
		"POST /api/scopes/{scope}/scan",
	}
	assert.Equal(t, want, got)
}

func TestAPIKeyRequired(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "missing", target: "/api/jobs", status: http.StatusUnauthorized},
		{name: "wrong", target: "/api/jobs", header: "nope", status: http.StatusUnauthorized},
		{name: "header", target: "/api/jobs", header: testAPIKey, status: http.StatusOK},
		{name: "query", target: "/api/jobs?apikey=" + testAPIKey, status: http.StatusOK},
		{name: "health is open", target: "/api/healthz/liveness", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAllowlistWithoutAPIKey(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &domain.Config{APIAllowedCIDRs: []string{"10.0.0.0/8"}})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerRejectsInvalidAllowlist(t *testing.T) {
	t.Parallel()

	_, err := NewServer(newTestDependencies(t, &domain.Config{APIKey: "k", APIAllowedCIDRs: []string{"bogus"}})).Handler()
	require.Error(t, err)
}

func TestScanRouteWaitsForReport(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/scopes/42/scan?wait=true&mode=check", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.ScanReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, remote.Scope(42), report.Scope)
	assert.Equal(t, models.ScanModeCheckOnly, report.Mode)
	assert.Equal(t, 2, report.Checked)
}

func TestCORSPreflightBypassesAuth(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/scopes/42/files", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSCredentialsOnlyForConfiguredOrigins(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &domain.Config{APIKey: testAPIKey, CORSAllowedOrigins: []string{"https://example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestAllowCredentials(t *testing.T) {
	t.Parallel()

	assert.False(t, allowCredentials(nil))
	assert.False(t, allowCredentials([]string{"*"}))
	assert.False(t, allowCredentials([]string{"https://a.example", "*"}))
	assert.True(t, allowCredentials([]string{"https://a.example"}))
}

func TestCORSAllowsCustomHeaders(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &domain.Config{APIKey: testAPIKey, CORSAllowedOrigins: []string{"https://example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "x-api-key,x-requested-with")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	allowed := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, allowed, "x-requested-with")
	assert.Contains(t, allowed, "x-api-key")

	req = httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://other.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
