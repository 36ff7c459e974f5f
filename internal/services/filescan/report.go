// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"time"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
)

// tally accumulates a run's outcomes into a report. It makes no remote calls.
type tally struct {
	report *models.ScanReport
}

func newTally(scope remote.Scope, mode models.ScanMode, total int, startedAt time.Time) *tally {
	return &tally{report: &models.ScanReport{
		Scope:        scope,
		Mode:         mode,
		StartedAt:    startedAt,
		Total:        total,
		Invalid:      []models.FileSummary{},
		Deleted:      []models.FileSummary{},
		DeleteFailed: []models.FileSummary{},
		Unknown:      []models.FileSummary{},
		Outcomes:     []models.ScanOutcome{},
		Failures:     []models.ItemFailure{},
	}}
}

func (t *tally) crawl(inv *Inventory) {
	if inv == nil {
		return
	}
	t.report.CrawlFailures = append(t.report.CrawlFailures, inv.SkippedFolders...)
	t.report.DroppedEntries += inv.DroppedEntries
}

func (t *tally) checked() { t.report.Checked++ }

func (t *tally) batch() { t.report.Batches++ }

func (t *tally) invalid(rec FileRecord) {
	t.report.Invalid = append(t.report.Invalid, rec.Summary())
}

func (t *tally) unknown(rec FileRecord, err error) {
	t.report.Unknown = append(t.report.Unknown, rec.Summary())
	t.fail(rec.Summary(), models.StageCheck, reason(err))
}

func (t *tally) reportedOnly(rec FileRecord) {
	t.outcome(rec, models.OutcomeReportedOnly)
}

func (t *tally) deleted(rec FileRecord) {
	t.report.Deleted = append(t.report.Deleted, rec.Summary())
	t.outcome(rec, models.OutcomeDeleted)
}

func (t *tally) deleteFailed(rec FileRecord, why string) {
	t.report.DeleteFailed = append(t.report.DeleteFailed, rec.Summary())
	t.outcome(rec, models.OutcomeDeleteFailed)
	t.fail(rec.Summary(), models.StageDelete, why)
}

func (t *tally) notFound(fileID string) {
	t.fail(models.FileSummary{ID: fileID}, models.StageLookup, "file not found")
}

func (t *tally) outcome(rec FileRecord, action models.OutcomeAction) {
	t.report.Outcomes = append(t.report.Outcomes, models.ScanOutcome{FileID: rec.ID, Name: rec.Name, Action: action})
}

func (t *tally) fail(file models.FileSummary, stage models.FailureStage, why string) {
	t.report.Failures = append(t.report.Failures, models.ItemFailure{File: file, Stage: stage, Reason: why})
}

func (t *tally) finish(completedAt time.Time) *models.ScanReport {
	t.report.CompletedAt = completedAt
	return t.report
}

func reason(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
