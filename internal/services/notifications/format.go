// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/groupfs/internal/models"
)

const (
	maxListedFiles = 30
	separator      = "--------------------"
	timeLayout     = "2006-01-02 15:04"
)

// FormatEvent renders an event as plain chat text.
func FormatEvent(event Event) string {
	switch event.Type {
	case EventScanCompleted:
		if event.Report == nil {
			return buildMessage("Scan completed", []string{formatLine("Scope", event.Scope.String())})
		}
		return FormatReport(event.Report)
	case EventScanFailed:
		lines := []string{
			formatLine("Scope", event.Scope.String()),
			formatLine("Mode", event.Mode.String()),
			formatLine("Error", formatErrorMessage(event.ErrorMessage)),
		}
		if r := event.Report; r != nil {
			lines = append(lines, formatLine("Checked before failure", fmt.Sprintf("%d/%d", r.Checked, r.Total)))
			if n := r.DeletedCount(); n > 0 {
				lines = append(lines, formatLine("Deleted before failure", fmt.Sprintf("%d", n)))
			}
		}
		return buildMessage("Scan failed", lines)
	case EventQuotaWarning:
		return FormatQuota(event.Quota)
	default:
		return ""
	}
}

// FormatReport renders a scan report. Check-only runs list counts; the other
// modes also list the affected files.
func FormatReport(r *models.ScanReport) string {
	if r == nil {
		return ""
	}

	title := "Scan completed"
	if r.Mode.Deletes() {
		title = "Cleanup completed"
	}

	lines := []string{
		formatLine("Scope", r.Scope.String()),
		formatLine("Mode", r.Mode.String()),
		formatLine("Files scanned", fmt.Sprintf("%d", r.Checked)),
		formatLine("Invalid", fmt.Sprintf("%d", r.InvalidCount())),
	}
	if r.Mode.Deletes() {
		lines = append(lines,
			formatLine("Deleted", fmt.Sprintf("%d", r.DeletedCount())),
			formatLine("Delete failed", fmt.Sprintf("%d", r.DeleteFailedCount())),
		)
	}
	if n := len(r.Unknown); n > 0 {
		lines = append(lines, formatLine("Unchecked (retry later)", fmt.Sprintf("%d", n)))
	}
	if n := len(r.CrawlFailures); n > 0 {
		lines = append(lines, formatLine("Folders skipped", fmt.Sprintf("%d", n)))
	}
	if d := r.Duration(); d > 0 {
		lines = append(lines, formatLine("Duration", d.Round(time.Second).String()))
	}

	if r.InvalidCount() == 0 {
		lines = append(lines, "No invalid files found.")
		return buildMessage(title, lines)
	}
	if r.Mode == models.ScanModeCheckOnly {
		return buildMessage(title, lines)
	}

	if r.Mode.Deletes() {
		lines = append(lines, fileList("Deleted files", r.Deleted)...)
		lines = append(lines, fileList("Could not delete, needs manual cleanup", r.DeleteFailed)...)
	} else {
		lines = append(lines, fileList("Invalid files", r.Invalid)...)
	}
	return buildMessage(title, lines)
}

// FormatQuota renders a storage warning.
func FormatQuota(q *models.QuotaStatus) string {
	if q == nil || !q.Exceeded() {
		return ""
	}
	lines := []string{formatLine("Scope", q.Scope.String())}
	if q.FilesExceeded {
		lines = append(lines, fmt.Sprintf("File count is %d, at or above the limit of %d.", q.FileCount, q.MaxFiles))
	}
	if q.SpaceExceeded {
		lines = append(lines, fmt.Sprintf("Used space is %.2fGB, at or above the limit of %.2fGB.", q.UsedGB(), q.MaxGB))
	}
	lines = append(lines, "Please clean up group files.")
	return buildMessage("Storage quota warning", lines)
}

func fileList(heading string, files []models.FileSummary) []string {
	if len(files) == 0 {
		return nil
	}
	out := []string{separator, fmt.Sprintf("%s (%d):", heading, len(files))}
	for i, f := range files {
		if i == maxListedFiles {
			out = append(out, fmt.Sprintf("... and %d more", len(files)-maxListedFiles))
			break
		}
		out = append(out, fmt.Sprintf("- %s (folder: %s | time: %s | %s)",
			f.Name, formatFolder(f.Folder), FormatTimestamp(f.ModifiedAt), FormatBytes(f.SizeBytes)))
	}
	return out
}

// FormatBytes renders a size with binary units and two decimals.
func FormatBytes(size int64) string {
	const unit = 1024
	labels := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	n := 0
	for value > unit && n < len(labels)-1 {
		value /= unit
		n++
	}
	return fmt.Sprintf("%.2f %s", value, labels[n])
}

// FormatTimestamp renders t in local time, or "unknown time" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	return t.Local().Format(timeLayout)
}

func formatFolder(folder string) string {
	if strings.TrimSpace(folder) == "" {
		return "unknown"
	}
	return folder
}

func formatLine(label, value string) string {
	trimmedLabel := strings.TrimSpace(label)
	trimmedValue := strings.TrimSpace(value)
	if trimmedLabel == "" || trimmedValue == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", trimmedLabel, trimmedValue)
}

func buildMessage(title string, lines []string) string {
	payload := make([]string, 0, len(lines)+1)
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		payload = append(payload, trimmed)
	}
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			payload = append(payload, trimmed)
		}
	}
	return strings.Join(payload, "\n")
}

func formatErrorMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "Unknown error"
	}
	return trimmed
}
