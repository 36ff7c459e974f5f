// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cronsched

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
)

var (
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrJobExists       = errors.New("job already registered")
	ErrJobNotFound     = errors.New("job not found")
)

// DefaultScheduledMode is used when a schedule entry does not name a mode.
const DefaultScheduledMode = models.ScanModeCheckAndReport

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseExpr parses a standard five field cron expression.
func ParseExpr(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(normalizeExpr(expr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return sched, nil
}

func normalizeExpr(expr string) string {
	return strings.Join(strings.Fields(expr), " ")
}

// JobSpec is a schedule entry from configuration.
type JobSpec struct {
	Scope    remote.Scope
	Schedule string
	Mode     models.ScanMode
}

// ParseJobSpec parses "scope:cron[:mode]", for example "123456:0 3 * * *:delete".
func ParseJobSpec(raw string) (JobSpec, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 3)
	if len(parts) < 2 {
		return JobSpec{}, fmt.Errorf("%w: %q: want scope:cron[:mode]", ErrInvalidSchedule, raw)
	}

	scope, err := remote.ParseScope(strings.TrimSpace(parts[0]))
	if err != nil {
		return JobSpec{}, err
	}

	expr := normalizeExpr(parts[1])
	if _, err := ParseExpr(expr); err != nil {
		return JobSpec{}, err
	}

	mode := DefaultScheduledMode
	if len(parts) == 3 {
		if mode, err = models.ParseScanMode(parts[2]); err != nil {
			return JobSpec{}, err
		}
	}

	return JobSpec{Scope: scope, Schedule: expr, Mode: mode}, nil
}

// JobKey identifies a scheduled job.
func JobKey(scope remote.Scope, expr string) string {
	return fmt.Sprintf("%d|%s", int64(scope), normalizeExpr(expr))
}

func onDemandKey(scope remote.Scope, id string) string {
	return fmt.Sprintf("%d|ondemand|%s", int64(scope), id)
}

type job struct {
	key      string
	scope    remote.Scope
	expr     string
	mode     models.ScanMode
	schedule cron.Schedule

	// lastDue is the last minute this job was found due; a second evaluation of
	// the same minute is ignored.
	lastDue time.Time
}

// dueAt reports whether the schedule fires at minute, which must be truncated to the minute.
func (j *job) dueAt(minute time.Time) bool {
	return j.schedule.Next(minute.Add(-time.Second)).Equal(minute)
}
