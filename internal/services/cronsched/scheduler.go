// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cronsched runs file scans on cron schedules and on demand, and never
// starts a scheduled job again while its previous run is still in flight.
package cronsched

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/notifications"
)

const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Scanner runs one scan of a scope.
type Scanner interface {
	Scan(ctx context.Context, scope remote.Scope, mode models.ScanMode) (*models.ScanReport, error)
	CheckQuota(ctx context.Context, scope remote.Scope) (*models.QuotaStatus, error)
}

// Observer receives run lifecycle counters. The metrics package implements it.
type Observer interface {
	RunStarted(scope remote.Scope, trigger string)
	RunFinished(scope remote.Scope, trigger string, failed bool, took time.Duration)
	RunSkipped(scope remote.Scope, reason string)
}

type nopObserver struct{}

func (nopObserver) RunStarted(remote.Scope, string)                     {}
func (nopObserver) RunFinished(remote.Scope, string, bool, time.Duration) {}
func (nopObserver) RunSkipped(remote.Scope, string)                     {}

// Config holds the scheduler configuration.
type Config struct {
	// MaxConcurrentRuns bounds runs across all scopes.
	MaxConcurrentRuns int64

	// CheckQuotaAfterScan runs a quota check after every scheduled scan.
	CheckQuotaAfterScan bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRuns:   2,
		CheckQuotaAfterScan: true,
	}
}

type runInfo struct {
	key       string
	scope     remote.Scope
	mode      models.ScanMode
	trigger   string
	startedAt time.Time
}

// Scheduler owns the registered jobs and the set of running job keys.
type Scheduler struct {
	cfg      Config
	scanner  Scanner
	notifier notifications.Notifier
	observer Observer
	sem      *semaphore.Weighted

	// mu guards jobs, order and running. It is held for the evaluate-and-mark
	// step only, never while a scan runs.
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	running map[string]*runInfo

	ctxMu   sync.RWMutex
	baseCtx context.Context
	wg      sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	spawn func(func())
	newID func() string
}

// New creates a scheduler. A nil notifier drops run notifications.
func New(cfg Config, scanner Scanner, notifier notifications.Notifier) *Scheduler {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = DefaultConfig().MaxConcurrentRuns
	}
	return &Scheduler{
		cfg:      cfg,
		scanner:  scanner,
		notifier: notifier,
		observer: nopObserver{},
		sem:      semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		jobs:     make(map[string]*job),
		running:  make(map[string]*runInfo),
		now:      time.Now,
		sleep:    sleepCtx,
		spawn:    func(fn func()) { go fn() },
		newID:    uuid.NewString,
	}
}

// SetObserver installs a metrics observer.
func (s *Scheduler) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// Register adds a recurring job and returns its key.
func (s *Scheduler) Register(scope remote.Scope, expr string, mode models.ScanMode) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	sched, err := ParseExpr(expr)
	if err != nil {
		return "", err
	}

	key := JobKey(scope, expr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[key]; ok {
		return "", fmt.Errorf("%w: %s", ErrJobExists, key)
	}
	s.jobs[key] = &job{key: key, scope: scope, expr: normalizeExpr(expr), mode: mode, schedule: sched}
	s.order = append(s.order, key)

	log.Info().Int64("scope", int64(scope)).Str("schedule", normalizeExpr(expr)).Str("mode", mode.String()).
		Msg("cronsched: registered job")
	return key, nil
}

// Unregister removes a job. A run already in flight finishes normally.
func (s *Scheduler) Unregister(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}
	s.removeLocked(key)
	return nil
}

func (s *Scheduler) removeLocked(key string) {
	delete(s.jobs, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetSchedules replaces the registered jobs with specs. Jobs present before and
// after keep their state; a job whose mode changed is updated in place.
func (s *Scheduler) SetSchedules(specs []JobSpec) error {
	var errs []error
	wanted := make(map[string]JobSpec, len(specs))
	var order []string
	for _, spec := range specs {
		if err := spec.Scope.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := ParseExpr(spec.Schedule); err != nil {
			errs = append(errs, err)
			continue
		}
		key := JobKey(spec.Scope, spec.Schedule)
		if _, dup := wanted[key]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrJobExists, key))
			continue
		}
		wanted[key] = spec
		order = append(order, key)
	}

	s.mu.Lock()
	for _, key := range append([]string(nil), s.order...) {
		if _, keep := wanted[key]; !keep {
			s.removeLocked(key)
			log.Info().Str("job", key).Msg("cronsched: removed job")
		}
	}
	for _, key := range order {
		spec := wanted[key]
		if existing, ok := s.jobs[key]; ok {
			existing.mode = spec.Mode
			continue
		}
		sched, _ := ParseExpr(spec.Schedule)
		s.jobs[key] = &job{key: key, scope: spec.Scope, expr: normalizeExpr(spec.Schedule), mode: spec.Mode, schedule: sched}
		s.order = append(s.order, key)
		log.Info().Int64("scope", int64(spec.Scope)).Str("schedule", spec.Schedule).Str("mode", spec.Mode.String()).
			Msg("cronsched: registered job")
	}
	s.mu.Unlock()

	return errors.Join(errs...)
}

// Start launches the minute loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.setBaseContext(ctx)
	go s.loop(ctx)
}

// Wait blocks until every spawned run has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next := s.now().Truncate(time.Minute).Add(time.Minute)
		if err := s.sleep(ctx, next.Sub(s.now())); err != nil {
			log.Debug().Msg("cronsched: scheduler loop stopped")
			return
		}
		s.tick(ctx, next)
	}
}

// tick dispatches every job due at minute whose previous run has finished.
func (s *Scheduler) tick(ctx context.Context, minute time.Time) {
	minute = minute.Truncate(time.Minute)

	s.mu.Lock()
	var due []*runInfo
	for _, key := range s.order {
		j := s.jobs[key]
		if !j.dueAt(minute) {
			continue
		}
		if !j.lastDue.IsZero() && !minute.After(j.lastDue) {
			continue
		}
		j.lastDue = minute

		if prev, busy := s.running[key]; busy {
			log.Warn().Str("job", key).Time("runningSince", prev.startedAt).
				Msg("cronsched: previous run still in progress, skipping")
			s.observer.RunSkipped(j.scope, "overlap")
			continue
		}

		run := &runInfo{key: key, scope: j.scope, mode: j.mode, trigger: TriggerScheduled, startedAt: s.now()}
		s.running[key] = run
		due = append(due, run)
	}
	s.mu.Unlock()

	for _, run := range due {
		s.wg.Add(1)
		s.spawn(func() {
			defer s.wg.Done()
			_, _ = s.execute(ctx, run)
		})
	}
}

// TriggerNow runs an on-demand scan in the caller's goroutine and returns its report.
func (s *Scheduler) TriggerNow(ctx context.Context, scope remote.Scope, mode models.ScanMode) (*models.ScanReport, error) {
	run, err := s.markOnDemand(scope, mode)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, run)
}

// Dispatch starts an on-demand scan in the background and returns its job key.
// The result is delivered through the notifier.
func (s *Scheduler) Dispatch(scope remote.Scope, mode models.ScanMode) (string, error) {
	run, err := s.markOnDemand(scope, mode)
	if err != nil {
		return "", err
	}
	ctx := s.baseContext()
	if ctx == nil {
		ctx = context.Background()
	}
	s.wg.Add(1)
	s.spawn(func() {
		defer s.wg.Done()
		_, _ = s.execute(ctx, run)
	})
	return run.key, nil
}

func (s *Scheduler) markOnDemand(scope remote.Scope, mode models.ScanMode) (*runInfo, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	run := &runInfo{
		key:       onDemandKey(scope, s.newID()),
		scope:     scope,
		mode:      mode,
		trigger:   TriggerManual,
		startedAt: s.now(),
	}
	s.mu.Lock()
	s.running[run.key] = run
	s.mu.Unlock()
	return run, nil
}

// execute runs one dispatch. The running entry is removed and exactly one
// scan notification is sent however the run ends, including a panic.
func (s *Scheduler) execute(ctx context.Context, run *runInfo) (report *models.ScanReport, err error) {
	started := s.now()
	s.observer.RunStarted(run.scope, run.trigger)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panicked: %v", r)
			log.Error().Str("job", run.key).Interface("panic", r).Msg("cronsched: run panicked")
		}
		s.finish(run)
		s.observer.RunFinished(run.scope, run.trigger, err != nil, s.now().Sub(started))
		s.notifyRun(ctx, run, report, err)
	}()

	if err = s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for run slot: %w", err)
	}
	defer s.sem.Release(1)

	log.Info().Str("job", run.key).Int64("scope", int64(run.scope)).Str("mode", run.mode.String()).
		Str("trigger", run.trigger).Msg("cronsched: run started")

	report, err = s.scanner.Scan(ctx, run.scope, run.mode)
	if err != nil {
		log.Error().Err(err).Str("job", run.key).Msg("cronsched: run failed")
		return report, err
	}

	log.Info().Str("job", run.key).Int("checked", report.Checked).Int("invalid", report.InvalidCount()).
		Int("deleted", report.DeletedCount()).Msg("cronsched: run finished")

	if run.trigger == TriggerScheduled && s.cfg.CheckQuotaAfterScan {
		if _, qerr := s.scanner.CheckQuota(ctx, run.scope); qerr != nil {
			log.Warn().Err(qerr).Int64("scope", int64(run.scope)).Msg("cronsched: quota check failed")
		}
	}
	return report, nil
}

func (s *Scheduler) finish(run *runInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.running[run.key]; ok && cur == run {
		delete(s.running, run.key)
	}
}

func (s *Scheduler) notifyRun(ctx context.Context, run *runInfo, report *models.ScanReport, err error) {
	if s.notifier == nil {
		return
	}
	event := notifications.Event{
		Type:        notifications.EventScanCompleted,
		Scope:       run.scope,
		JobKey:      run.key,
		TriggeredBy: run.trigger,
		Mode:        run.mode,
		Report:      report,
	}
	if err != nil {
		event.Type = notifications.EventScanFailed
		event.ErrorMessage = err.Error()
	}
	s.notifier.Notify(context.WithoutCancel(ctx), event)
}

// IsRunning reports whether key has a run in flight.
func (s *Scheduler) IsRunning(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[key]
	return ok
}

// Running returns the keys of runs in flight, sorted.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.running))
	for k := range s.running {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Jobs lists registered jobs in registration order followed by on-demand runs in flight.
func (s *Scheduler) Jobs() []models.JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]models.JobInfo, 0, len(s.order)+len(s.running))
	for _, key := range s.order {
		j := s.jobs[key]
		next := j.schedule.Next(now)
		info := models.JobInfo{Key: key, Scope: j.scope, Schedule: j.expr, Mode: j.mode, NextRun: &next}
		if run, ok := s.running[key]; ok {
			started := run.startedAt
			info.Running = true
			info.StartedAt = &started
		}
		out = append(out, info)
	}

	var adhoc []models.JobInfo
	for key, run := range s.running {
		if _, scheduled := s.jobs[key]; scheduled || run.trigger != TriggerManual {
			continue
		}
		started := run.startedAt
		adhoc = append(adhoc, models.JobInfo{Key: key, Scope: run.scope, Mode: run.mode, Running: true, StartedAt: &started})
	}
	sort.Slice(adhoc, func(i, k int) bool { return adhoc[i].Key < adhoc[k].Key })
	return append(out, adhoc...)
}

func (s *Scheduler) setBaseContext(ctx context.Context) {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	s.baseCtx = ctx
}

func (s *Scheduler) baseContext() context.Context {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.baseCtx
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
