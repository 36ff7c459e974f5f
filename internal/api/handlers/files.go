// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/filescan"
)

// FileService is the part of the file scan service the file endpoints use.
type FileService interface {
	Find(ctx context.Context, scope remote.Scope, q filescan.Query) ([]filescan.FileRecord, error)
	DeleteFiles(ctx context.Context, scope remote.Scope, ids []string) (*models.ScanReport, error)
	CheckQuota(ctx context.Context, scope remote.Scope) (*models.QuotaStatus, error)
}

type FilesHandler struct {
	files FileService
}

func NewFilesHandler(files FileService) *FilesHandler {
	return &FilesHandler{files: files}
}

type FileListResponse struct {
	Scope remote.Scope          `json:"scope"`
	Count int                   `json:"count"`
	Files []filescan.FileRecord `json:"files"`
}

type DeleteFilesRequest struct {
	IDs []string `json:"ids"`
}

// SearchFiles handles GET /files?q=term&fuzzy=true&where=expr.
func (h *FilesHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	scope, ok := ParseScope(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fuzzy, _ := strconv.ParseBool(query.Get("fuzzy"))
	files, err := h.files.Find(r.Context(), scope, filescan.Query{
		Term:  query.Get("q"),
		Fuzzy: fuzzy,
		Where: query.Get("where"),
	})
	if err != nil {
		RespondServiceError(w, err, "search files")
		return
	}
	if files == nil {
		files = []filescan.FileRecord{}
	}
	RespondJSON(w, http.StatusOK, FileListResponse{Scope: scope, Count: len(files), Files: files})
}

// DeleteFiles handles DELETE /files with a body of file ids.
func (h *FilesHandler) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	scope, ok := ParseScope(w, r)
	if !ok {
		return
	}

	var req DeleteFilesRequest
	if !DecodeJSONOptional(w, r, &req) {
		return
	}

	report, err := h.files.DeleteFiles(r.Context(), scope, req.IDs)
	if err != nil {
		if report != nil {
			RespondJSON(w, statusForError(err), ScanFailedResponse{Error: err.Error(), Report: report})
			return
		}
		RespondServiceError(w, err, "delete files")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

func (h *FilesHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	scope, ok := ParseScope(w, r)
	if !ok {
		return
	}
	status, err := h.files.CheckQuota(r.Context(), scope)
	if err != nil {
		RespondServiceError(w, err, "check quota")
		return
	}
	RespondJSON(w, http.StatusOK, status)
}
