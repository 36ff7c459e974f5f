// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
)

// Recorder receives per-item counters. The metrics package implements it.
type Recorder interface {
	RecordCheck(scope remote.Scope, status string)
	RecordDelete(scope remote.Scope, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordCheck(remote.Scope, string) {}
func (nopRecorder) RecordDelete(remote.Scope, bool)  {}

// Runner makes one paced pass over an inventory. Calls against a scope are
// strictly sequential.
type Runner struct {
	client   remote.Client
	opts     Options
	pacer    Pacer
	recorder Recorder
	now      func() time.Time
}

// NewRunner builds a runner. A nil pacer waits on real timers, a nil recorder drops counters.
func NewRunner(client remote.Client, opts Options, pacer Pacer, recorder Recorder) *Runner {
	if pacer == nil {
		pacer = TimerPacer{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Runner{
		client:   client,
		opts:     opts.withDefaults(),
		pacer:    pacer,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run checks every record in batches and, in delete mode, removes the invalid
// ones. Per-item failures are recorded and skipped. A fatal error stops the
// pass and is returned together with the partial report.
func (r *Runner) Run(ctx context.Context, scope remote.Scope, inv *Inventory, mode models.ScanMode) (*models.ScanReport, error) {
	t := newTally(scope, mode, inv.Len(), r.now())
	t.crawl(inv)

	var records []FileRecord
	if inv != nil {
		records = inv.Records
	}

	for start := 0; start < len(records); start += r.opts.BatchSize {
		if start > 0 {
			if err := r.pacer.Wait(ctx, r.opts.BatchDelay); err != nil {
				return t.finish(r.now()), err
			}
		}

		end := min(start+r.opts.BatchSize, len(records))
		t.batch()
		log.Debug().Int64("scope", int64(scope)).Int("from", start).Int("to", end).Int("total", len(records)).
			Msg("filescan: processing batch")

		for i, rec := range records[start:end] {
			if i > 0 {
				if err := r.pacer.Wait(ctx, r.opts.ItemDelay); err != nil {
					return t.finish(r.now()), err
				}
			}
			if err := r.process(ctx, scope, rec, mode, t); err != nil {
				log.Error().Err(err).Int64("scope", int64(scope)).Str("file", rec.ID).
					Msg("filescan: aborting run")
				return t.finish(r.now()), err
			}
		}
	}

	return t.finish(r.now()), nil
}

func (r *Runner) process(ctx context.Context, scope remote.Scope, rec FileRecord, mode models.ScanMode, t *tally) error {
	v, err := Check(ctx, r.client, scope, rec)
	if err != nil {
		return err
	}
	t.checked()
	r.recorder.RecordCheck(scope, v.Status.String())

	switch v.Status {
	case StatusValid:
		return nil
	case StatusUnknown:
		log.Warn().Err(v.Err).Int64("scope", int64(scope)).Str("file", rec.ID).Str("name", rec.Name).
			Msg("filescan: could not classify file, leaving it untouched")
		t.unknown(rec, v.Err)
		return nil
	}

	t.invalid(rec)
	if !mode.Deletes() {
		t.reportedOnly(rec)
		return nil
	}

	if err := r.pacer.Wait(ctx, r.opts.ItemDelay); err != nil {
		return err
	}
	return r.delete(ctx, scope, rec, t)
}

// delete counts a removal only when the response carries an explicit success code.
func (r *Runner) delete(ctx context.Context, scope remote.Scope, rec FileRecord, t *tally) error {
	res, err := r.client.DeleteFile(ctx, scope, rec.ID)
	if err != nil {
		if Classify(err) == ClassFatal || ctx.Err() != nil {
			return fmt.Errorf("delete %s: %w", rec.ID, err)
		}
		log.Warn().Err(err).Int64("scope", int64(scope)).Str("file", rec.ID).Msg("filescan: delete failed")
		t.deleteFailed(rec, err.Error())
		r.recorder.RecordDelete(scope, false)
		return nil
	}

	if !res.Succeeded() {
		log.Warn().Int64("scope", int64(scope)).Str("file", rec.ID).Str("reason", res.Reason()).
			Msg("filescan: delete not confirmed")
		t.deleteFailed(rec, res.Reason())
		r.recorder.RecordDelete(scope, false)
		return nil
	}

	log.Info().Int64("scope", int64(scope)).Str("file", rec.ID).Str("name", rec.Name).Msg("filescan: deleted invalid file")
	t.deleted(rec)
	r.recorder.RecordDelete(scope, true)
	return nil
}
