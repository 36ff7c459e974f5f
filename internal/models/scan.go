// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/groupfs/internal/remote"
)

var ErrUnknownScanMode = errors.New("unknown scan mode")

// ScanMode selects what a run does with invalid files.
type ScanMode int

const (
	ScanModeCheckOnly ScanMode = iota
	ScanModeCheckAndReport
	ScanModeCheckAndDelete
)

func (m ScanMode) String() string {
	switch m {
	case ScanModeCheckOnly:
		return "check"
	case ScanModeCheckAndReport:
		return "report"
	case ScanModeCheckAndDelete:
		return "delete"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Deletes reports whether invalid files are removed.
func (m ScanMode) Deletes() bool { return m == ScanModeCheckAndDelete }

func (m ScanMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ScanMode) UnmarshalText(text []byte) error {
	parsed, err := ParseScanMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseScanMode accepts the short and long spellings of each mode.
// An empty value means check only.
func ParseScanMode(raw string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "check", "check_only", "checkonly":
		return ScanModeCheckOnly, nil
	case "report", "check_and_report", "checkandreport":
		return ScanModeCheckAndReport, nil
	case "delete", "check_and_delete", "checkanddelete":
		return ScanModeCheckAndDelete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScanMode, raw)
	}
}

// FileSummary is the report view of one file.
type FileSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Folder     string    `json:"folder"`
	ModifiedAt time.Time `json:"modifiedAt"`
	SizeBytes  int64     `json:"sizeBytes"`
}

type OutcomeAction string

const (
	OutcomeDeleted      OutcomeAction = "deleted"
	OutcomeDeleteFailed OutcomeAction = "delete_failed"
	OutcomeReportedOnly OutcomeAction = "reported_only"
)

// ScanOutcome records what happened to one invalid file.
type ScanOutcome struct {
	FileID string        `json:"fileId"`
	Name   string        `json:"name"`
	Action OutcomeAction `json:"action"`
}

type FailureStage string

const (
	StageCheck  FailureStage = "check"
	StageDelete FailureStage = "delete"
	StageLookup FailureStage = "lookup"
)

// ItemFailure is a per-file failure that did not stop the run.
type ItemFailure struct {
	File   FileSummary  `json:"file"`
	Stage  FailureStage `json:"stage"`
	Reason string       `json:"reason"`
}

// FolderFailure is a folder whose listing failed during the crawl.
type FolderFailure struct {
	FolderID string `json:"folderId"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

// ScanReport aggregates one run.
type ScanReport struct {
	Scope       remote.Scope `json:"scope"`
	Mode        ScanMode     `json:"mode"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt time.Time    `json:"completedAt"`

	Total   int `json:"total"`
	Checked int `json:"checked"`
	Batches int `json:"batches"`

	Invalid      []FileSummary `json:"invalid"`
	Deleted      []FileSummary `json:"deleted"`
	DeleteFailed []FileSummary `json:"deleteFailed"`
	Unknown      []FileSummary `json:"unknown"`

	Outcomes       []ScanOutcome   `json:"outcomes"`
	Failures       []ItemFailure   `json:"failures"`
	CrawlFailures  []FolderFailure `json:"crawlFailures,omitempty"`
	DroppedEntries int             `json:"droppedEntries,omitempty"`
}

// InvalidCount, DeletedCount and DeleteFailedCount are the report tallies.
func (r *ScanReport) InvalidCount() int      { return len(r.Invalid) }
func (r *ScanReport) DeletedCount() int      { return len(r.Deleted) }
func (r *ScanReport) DeleteFailedCount() int { return len(r.DeleteFailed) }

// Clean reports whether the run found nothing to act on and hit no failures.
func (r *ScanReport) Clean() bool {
	return len(r.Invalid) == 0 && len(r.Unknown) == 0 && len(r.Failures) == 0 && len(r.CrawlFailures) == 0
}

// Duration is zero until the run has completed.
func (r *ScanReport) Duration() time.Duration {
	if r.CompletedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// QuotaStatus compares a scope's usage against its configured limit.
type QuotaStatus struct {
	Scope      remote.Scope `json:"scope"`
	FileCount  int          `json:"fileCount"`
	LimitCount int          `json:"limitCount"`
	UsedBytes  int64        `json:"usedBytes"`
	TotalBytes int64        `json:"totalBytes"`

	MaxFiles int     `json:"maxFiles,omitempty"`
	MaxGB    float64 `json:"maxGb,omitempty"`

	FilesExceeded bool `json:"filesExceeded"`
	SpaceExceeded bool `json:"spaceExceeded"`
}

// UsedGB is the used space in GiB.
func (q *QuotaStatus) UsedGB() float64 {
	return float64(q.UsedBytes) / (1 << 30)
}

func (q *QuotaStatus) Exceeded() bool {
	return q.FilesExceeded || q.SpaceExceeded
}

// JobInfo describes a registered or running job.
type JobInfo struct {
	Key       string       `json:"key"`
	Scope     remote.Scope `json:"scope"`
	Schedule  string       `json:"schedule,omitempty"`
	Mode      ScanMode     `json:"mode"`
	Running   bool         `json:"running"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	NextRun   *time.Time   `json:"nextRun,omitempty"`
}
