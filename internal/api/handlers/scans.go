// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
)

// Scheduler is the part of the scheduler the scan endpoints drive.
type Scheduler interface {
	TriggerNow(ctx context.Context, scope remote.Scope, mode models.ScanMode) (*models.ScanReport, error)
	Dispatch(scope remote.Scope, mode models.ScanMode) (string, error)
	Jobs() []models.JobInfo
}

type ScanHandler struct {
	scheduler Scheduler
}

func NewScanHandler(scheduler Scheduler) *ScanHandler {
	return &ScanHandler{scheduler: scheduler}
}

type ScanRequest struct {
	Mode string `json:"mode"`
}

type ScanAcceptedResponse struct {
	JobKey string          `json:"jobKey"`
	Scope  remote.Scope    `json:"scope"`
	Mode   models.ScanMode `json:"mode"`
}

type ScanFailedResponse struct {
	Error  string             `json:"error"`
	Report *models.ScanReport `json:"report,omitempty"`
}

// TriggerScan starts an on-demand scan. With ?wait=true the request blocks and
// returns the report, otherwise it answers 202 with the job key.
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	scope, ok := ParseScope(w, r)
	if !ok {
		return
	}

	var req ScanRequest
	if !DecodeJSONOptional(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = r.URL.Query().Get("mode")
	}
	mode, err := models.ParseScanMode(req.Mode)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		key, err := h.scheduler.Dispatch(scope, mode)
		if err != nil {
			RespondServiceError(w, err, "dispatch scan")
			return
		}
		log.Info().Int64("scope", int64(scope)).Str("job", key).Str("mode", mode.String()).Msg("api: scan dispatched")
		RespondJSON(w, http.StatusAccepted, ScanAcceptedResponse{JobKey: key, Scope: scope, Mode: mode})
		return
	}

	report, err := h.scheduler.TriggerNow(r.Context(), scope, mode)
	if err != nil {
		if report != nil {
			RespondJSON(w, statusForError(err), ScanFailedResponse{Error: err.Error(), Report: report})
			return
		}
		RespondServiceError(w, err, "run scan")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

func (h *ScanHandler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, h.scheduler.Jobs())
}
