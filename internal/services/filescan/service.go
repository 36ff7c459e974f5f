// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package filescan inventories a scope's group files, finds the ones whose content
// is gone and reports or removes them at a pace the platform tolerates.
package filescan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/notifications"
	"github.com/autobrr/groupfs/pkg/stringutils"
)

var (
	ErrEmptySearchTerm = errors.New("search term is empty")
	ErrNoFilesSelected = errors.New("no files selected")
)

// Service runs scans against the shared remote connection.
type Service struct {
	handle   *remote.Handle
	opts     Options
	notifier notifications.Notifier
	recorder Recorder
	pacer    Pacer
	now      func() time.Time

	limitsMu sync.RWMutex
	limits   map[remote.Scope]StorageLimit
}

// NewService creates a new file scan service.
func NewService(handle *remote.Handle, opts Options, notifier notifications.Notifier) *Service {
	return &Service{
		handle:   handle,
		opts:     opts.withDefaults(),
		notifier: notifier,
		recorder: nopRecorder{},
		pacer:    TimerPacer{},
		now:      time.Now,
		limits:   make(map[remote.Scope]StorageLimit),
	}
}

// SetRecorder installs a metrics recorder.
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

// SetStorageLimits replaces the configured quota limits.
func (s *Service) SetStorageLimits(limits map[remote.Scope]StorageLimit) {
	next := make(map[remote.Scope]StorageLimit, len(limits))
	for scope, limit := range limits {
		next[scope] = limit
	}
	s.limitsMu.Lock()
	s.limits = next
	s.limitsMu.Unlock()
}

// StorageLimit returns the limit configured for scope.
func (s *Service) StorageLimit(scope remote.Scope) (StorageLimit, bool) {
	s.limitsMu.RLock()
	defer s.limitsMu.RUnlock()
	limit, ok := s.limits[scope]
	return limit, ok
}

func (s *Service) client(ctx context.Context, scope remote.Scope) (remote.Client, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if s.handle == nil {
		return nil, remote.ErrConnectionUnavailable
	}
	return s.handle.Get(ctx)
}

func (s *Service) runner(client remote.Client) *Runner {
	r := NewRunner(client, s.opts, s.pacer, s.recorder)
	r.now = s.now
	return r
}

// Crawl builds a fresh inventory of scope.
func (s *Service) Crawl(ctx context.Context, scope remote.Scope) (*Inventory, error) {
	client, err := s.client(ctx, scope)
	if err != nil {
		return nil, err
	}
	return Crawl(ctx, client, scope, s.opts.PageSize)
}

// Scan crawls scope and checks every file. In delete mode invalid files are removed.
// On a fatal error after the crawl the partial report is returned with the error.
func (s *Service) Scan(ctx context.Context, scope remote.Scope, mode models.ScanMode) (*models.ScanReport, error) {
	client, err := s.client(ctx, scope)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("scope", int64(scope)).Str("mode", mode.String()).Msg("filescan: starting scan")

	inv, err := Crawl(ctx, client, scope, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}
	log.Info().Int64("scope", int64(scope)).Int("files", inv.Len()).Msg("filescan: inventory built")

	report, err := s.runner(client).Run(ctx, scope, inv, mode)
	if err != nil {
		return report, err
	}

	log.Info().
		Int64("scope", int64(scope)).
		Int("checked", report.Checked).
		Int("invalid", report.InvalidCount()).
		Int("deleted", report.DeletedCount()).
		Int("deleteFailed", report.DeleteFailedCount()).
		Int("unknown", len(report.Unknown)).
		Msg("filescan: scan complete")
	return report, nil
}

// CheckQuota compares the scope's usage with its configured limit and emits a
// warning when either bound is reached.
func (s *Service) CheckQuota(ctx context.Context, scope remote.Scope) (*models.QuotaStatus, error) {
	client, err := s.client(ctx, scope)
	if err != nil {
		return nil, err
	}

	q, err := client.GetQuota(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}

	status := &models.QuotaStatus{
		Scope:      scope,
		FileCount:  q.FileCount,
		LimitCount: q.LimitCount,
		UsedBytes:  q.UsedSpace,
		TotalBytes: q.TotalSpace,
	}

	limit, ok := s.StorageLimit(scope)
	if !ok {
		return status, nil
	}
	status.MaxFiles = limit.MaxFiles
	status.MaxGB = limit.MaxGB
	status.FilesExceeded = limit.MaxFiles > 0 && status.FileCount >= limit.MaxFiles
	status.SpaceExceeded = limit.MaxGB > 0 && status.UsedGB() >= limit.MaxGB

	if status.Exceeded() {
		log.Warn().Int64("scope", int64(scope)).Int("files", status.FileCount).
			Float64("usedGB", status.UsedGB()).Msg("filescan: storage limit reached")
		if s.notifier != nil {
			s.notifier.Notify(ctx, notifications.Event{
				Type:  notifications.EventQuotaWarning,
				Scope: scope,
				Quota: status,
			})
		}
	}
	return status, nil
}

// Search crawls scope and returns the files whose name contains term, ignoring
// case and unicode composition. With fuzzy set, names are ranked by edit
// distance instead and non-contiguous matches are allowed.
func (s *Service) Search(ctx context.Context, scope remote.Scope, term string, fuzzyMatch bool) ([]FileRecord, error) {
	return s.Find(ctx, scope, Query{Term: term, Fuzzy: fuzzyMatch})
}

func matchRecords(records []FileRecord, needle string, fuzzyMatch bool) []FileRecord {
	if !fuzzyMatch {
		var out []FileRecord
		for _, rec := range records {
			if strings.Contains(stringutils.FoldName(rec.Name), needle) {
				out = append(out, rec)
			}
		}
		return out
	}

	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = stringutils.FoldName(rec.Name)
	}
	ranks := fuzzy.RankFindNormalizedFold(needle, names)
	sort.Stable(ranks)

	out := make([]FileRecord, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, records[rank.OriginalIndex])
	}
	return out
}

// DeleteFiles removes the selected files one by one. Ids missing from a fresh
// crawl are reported as lookup failures.
func (s *Service) DeleteFiles(ctx context.Context, scope remote.Scope, ids []string) (*models.ScanReport, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoFilesSelected
	}

	client, err := s.client(ctx, scope)
	if err != nil {
		return nil, err
	}

	inv, err := Crawl(ctx, client, scope, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}
	index := inv.Index()

	r := s.runner(client)
	t := newTally(scope, models.ScanModeCheckAndDelete, len(ids), s.now())
	t.crawl(inv)

	for i, id := range ids {
		rec, ok := index[id]
		if !ok {
			t.notFound(id)
			continue
		}
		if i > 0 {
			if err := s.pacer.Wait(ctx, s.opts.DeleteDelay); err != nil {
				return t.finish(s.now()), err
			}
		}
		t.checked()
		log.Info().Int64("scope", int64(scope)).Str("file", rec.ID).Str("name", rec.Name).
			Int("index", i+1).Int("total", len(ids)).Msg("filescan: deleting selected file")
		if err := r.delete(ctx, scope, rec, t); err != nil {
			return t.finish(s.now()), err
		}
	}

	return t.finish(s.now()), nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
