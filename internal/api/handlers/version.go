// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/buildinfo"
)

// ReleaseChecker looks up the newest published release.
type ReleaseChecker interface {
	Check(ctx context.Context) (*selfupdate.Release, bool, error)
}

type VersionHandler struct {
	checker ReleaseChecker
}

func NewVersionHandler(checker ReleaseChecker) *VersionHandler {
	return &VersionHandler{checker: checker}
}

type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type LatestVersionResponse struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name,omitempty"`
	Body        string `json:"body,omitempty"`
	HTMLURL     string `json:"html_url"`
	PublishedAt string `json:"published_at"`
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, VersionResponse{
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
		Date:    buildinfo.Date,
	})
}

// GetLatestVersion answers 204 when no newer release exists or the check is disabled.
func (h *VersionHandler) GetLatestVersion(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	release, newer, err := h.checker.Check(r.Context())
	if err != nil {
		log.Debug().Err(err).Msg("api: release check failed")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !newer || release == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	RespondJSON(w, http.StatusOK, LatestVersionResponse{
		TagName:     "v" + release.Version(),
		Name:        release.Name,
		Body:        release.ReleaseNotes,
		HTMLURL:     release.URL,
		PublishedAt: release.PublishedAt.UTC().Format(time.RFC3339),
	})
}
