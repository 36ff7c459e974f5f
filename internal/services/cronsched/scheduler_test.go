// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cronsched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/notifications"
)

const testScope remote.Scope = 424242

var threeAM = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

type fakeScanner struct {
	mu      sync.Mutex
	scans   []models.ScanMode
	quotas  int
	block   chan struct{}
	started chan struct{}
	err     error
	panicV  any
}

func (f *fakeScanner) Scan(ctx context.Context, scope remote.Scope, mode models.ScanMode) (*models.ScanReport, error) {
	f.mu.Lock()
	f.scans = append(f.scans, mode)
	block, started, err, p := f.block, f.started, f.err, f.panicV
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p != nil {
		panic(p)
	}
	if err != nil {
		return nil, err
	}
	return &models.ScanReport{Scope: scope, Mode: mode, Checked: 3}, nil
}

func (f *fakeScanner) CheckQuota(_ context.Context, scope remote.Scope) (*models.QuotaStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotas++
	return &models.QuotaStatus{Scope: scope}, nil
}

func (f *fakeScanner) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scans)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event notifications.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type countingObserver struct {
	started, failed, skipped atomic.Int32
}

func (o *countingObserver) RunStarted(remote.Scope, string) { o.started.Add(1) }
func (o *countingObserver) RunFinished(_ remote.Scope, _ string, failed bool, _ time.Duration) {
	if failed {
		o.failed.Add(1)
	}
}
func (o *countingObserver) RunSkipped(remote.Scope, string) { o.skipped.Add(1) }

func newTestScheduler(scanner Scanner) (*Scheduler, *recordingNotifier) {
	n := &recordingNotifier{}
	s := New(DefaultConfig(), scanner, n)
	s.now = func() time.Time { return threeAM }
	id := 0
	s.newID = func() string {
		id++
		return "run" + string(rune('0'+id))
	}
	return s, n
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(&fakeScanner{})

	key, err := s.Register(testScope, "0 3 * * *", models.ScanModeCheckAndReport)
	require.NoError(t, err)
	assert.Equal(t, JobKey(testScope, "0 3 * * *"), key)

	_, err = s.Register(testScope, "0  3 * * *", models.ScanModeCheckOnly)
	require.ErrorIs(t, err, ErrJobExists)

	_, err = s.Register(testScope, "not cron", models.ScanModeCheckOnly)
	require.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = s.Register(0, "0 3 * * *", models.ScanModeCheckOnly)
	require.ErrorIs(t, err, remote.ErrInvalidScope)

	require.NoError(t, s.Unregister(key))
	require.ErrorIs(t, s.Unregister(key), ErrJobNotFound)
}

func TestTickSkipsJobStillRunning(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{block: make(chan struct{}), started: make(chan struct{}, 4)}
	s, notifier := newTestScheduler(scanner)
	obs := &countingObserver{}
	s.SetObserver(obs)

	key, err := s.Register(testScope, "* * * * *", models.ScanModeCheckAndDelete)
	require.NoError(t, err)

	ctx := context.Background()
	s.tick(ctx, threeAM)
	<-scanner.started
	require.True(t, s.IsRunning(key))

	// next minute fires while the first run is still blocked
	s.tick(ctx, threeAM.Add(time.Minute))
	s.tick(ctx, threeAM.Add(2*time.Minute))

	assert.Equal(t, 1, scanner.scanCount())
	assert.Equal(t, int32(2), obs.skipped.Load())

	close(scanner.block)
	s.Wait()

	assert.False(t, s.IsRunning(key))
	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, notifications.EventScanCompleted, events[0].Type)
	assert.Equal(t, TriggerScheduled, events[0].TriggeredBy)
	assert.Equal(t, models.ScanModeCheckAndDelete, events[0].Mode)

	// free again: the next due minute dispatches
	s.tick(ctx, threeAM.Add(3*time.Minute))
	s.Wait()
	assert.Equal(t, 2, scanner.scanCount())
}

func TestTickSameMinuteDispatchesOnce(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	s, _ := newTestScheduler(scanner)
	_, err := s.Register(testScope, "0 3 * * *", models.ScanModeCheckOnly)
	require.NoError(t, err)

	ctx := context.Background()
	s.tick(ctx, threeAM)
	s.Wait()
	s.tick(ctx, threeAM.Add(20*time.Second))
	s.Wait()
	s.tick(ctx, threeAM.Add(time.Minute))
	s.Wait()

	assert.Equal(t, 1, scanner.scanCount())
}

func TestRunningEntryReleasedOnEveryOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		scanner   *fakeScanner
		wantEvent notifications.EventType
	}{
		{name: "success", scanner: &fakeScanner{}, wantEvent: notifications.EventScanCompleted},
		{name: "error", scanner: &fakeScanner{err: errors.New("remote down")}, wantEvent: notifications.EventScanFailed},
		{name: "panic", scanner: &fakeScanner{panicV: "boom"}, wantEvent: notifications.EventScanFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, notifier := newTestScheduler(tt.scanner)
			obs := &countingObserver{}
			s.SetObserver(obs)
			key, err := s.Register(testScope, "0 3 * * *", models.ScanModeCheckAndReport)
			require.NoError(t, err)

			s.tick(context.Background(), threeAM)
			s.Wait()

			assert.False(t, s.IsRunning(key))
			assert.Empty(t, s.Running())

			events := notifier.all()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantEvent, events[0].Type)
			assert.Equal(t, key, events[0].JobKey)
			if tt.wantEvent == notifications.EventScanFailed {
				assert.NotEmpty(t, events[0].ErrorMessage)
				assert.Equal(t, int32(1), obs.failed.Load())
			}
		})
	}
}

func TestScheduledRunChecksQuota(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	s, _ := newTestScheduler(scanner)
	_, err := s.Register(testScope, "0 3 * * *", models.ScanModeCheckAndReport)
	require.NoError(t, err)

	s.tick(context.Background(), threeAM)
	s.Wait()
	assert.Equal(t, 1, scanner.quotas)

	_, err = s.TriggerNow(context.Background(), testScope, models.ScanModeCheckOnly)
	require.NoError(t, err)
	assert.Equal(t, 1, scanner.quotas, "manual runs do not check quota")
}

func TestTriggerNowReturnsReport(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	s, notifier := newTestScheduler(scanner)

	report, err := s.TriggerNow(context.Background(), testScope, models.ScanModeCheckOnly)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Checked)
	assert.Empty(t, s.Running())

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, TriggerManual, events[0].TriggeredBy)

	_, err = s.TriggerNow(context.Background(), 0, models.ScanModeCheckOnly)
	require.ErrorIs(t, err, remote.ErrInvalidScope)
}

func TestDispatchRunsInBackground(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, notifier := newTestScheduler(scanner)
	s.setBaseContext(context.Background())

	key, err := s.Dispatch(testScope, models.ScanModeCheckAndDelete)
	require.NoError(t, err)
	assert.Contains(t, key, "|ondemand|")

	<-scanner.started
	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, key, jobs[0].Key)
	assert.True(t, jobs[0].Running)

	close(scanner.block)
	s.Wait()
	assert.Empty(t, s.Jobs())
	require.Len(t, notifier.all(), 1)
}

func TestSetSchedulesKeepsExistingState(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	s, _ := newTestScheduler(scanner)

	err := s.SetSchedules([]JobSpec{
		{Scope: testScope, Schedule: "0 3 * * *", Mode: models.ScanModeCheckAndReport},
		{Scope: 7, Schedule: "0 4 * * *", Mode: models.ScanModeCheckOnly},
	})
	require.NoError(t, err)
	require.Len(t, s.Jobs(), 2)

	s.tick(context.Background(), threeAM)
	s.Wait()
	require.Equal(t, 1, scanner.scanCount())

	// reload within the same minute must not fire the kept job again
	err = s.SetSchedules([]JobSpec{
		{Scope: testScope, Schedule: "0 3 * * *", Mode: models.ScanModeCheckAndDelete},
		{Scope: 7, Schedule: "not cron"},
	})
	require.ErrorIs(t, err, ErrInvalidSchedule)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ScanModeCheckAndDelete, jobs[0].Mode)
	require.NotNil(t, jobs[0].NextRun)

	s.tick(context.Background(), threeAM)
	s.Wait()
	assert.Equal(t, 1, scanner.scanCount())
}

func TestConcurrentRunsBounded(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{block: make(chan struct{}), started: make(chan struct{}, 8)}
	n := &recordingNotifier{}
	s := New(Config{MaxConcurrentRuns: 1}, scanner, n)
	s.setBaseContext(context.Background())

	_, err := s.Dispatch(testScope, models.ScanModeCheckOnly)
	require.NoError(t, err)
	_, err = s.Dispatch(7, models.ScanModeCheckOnly)
	require.NoError(t, err)

	<-scanner.started
	select {
	case <-scanner.started:
		t.Fatal("second run started while the slot was taken")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Len(t, s.Running(), 2)

	close(scanner.block)
	<-scanner.started
	s.Wait()
	assert.Equal(t, 2, scanner.scanCount())
}

// steppingClock advances to the end of every sleep plus a fixed lag, the way a
// real timer fires slightly late.
type steppingClock struct {
	mu     sync.Mutex
	now    time.Time
	lag    time.Duration
	sleeps []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	done := len(c.sleeps) > c.limit
	if !done {
		c.now = c.now.Add(d + c.lag)
	}
	c.mu.Unlock()

	if done {
		c.cancel()
	}
	return ctx.Err()
}

func TestLoopSleepsToMinuteBoundaries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &steppingClock{
		now:    threeAM.Add(17 * time.Second),
		lag:    250 * time.Millisecond,
		limit:  3,
		cancel: cancel,
	}
	scanner := &fakeScanner{}
	s, _ := newTestScheduler(scanner)
	s.now = clock.Now
	s.sleep = clock.Sleep

	key, err := s.Register(testScope, "2 3 * * *", models.ScanModeCheckOnly)
	require.NoError(t, err)

	s.loop(ctx)
	s.Wait()

	assert.Equal(t, []time.Duration{
		43 * time.Second,
		59*time.Second + 750*time.Millisecond,
		59*time.Second + 750*time.Millisecond,
		59*time.Second + 750*time.Millisecond,
	}, clock.sleeps)

	// ticks ran for 03:01, 03:02 and 03:03; only 03:02 is due
	assert.Equal(t, 1, scanner.scanCount())
	s.mu.Lock()
	lastDue := s.jobs[key].lastDue
	s.mu.Unlock()
	assert.Equal(t, threeAM.Add(2*time.Minute), lastDue)
}

func TestLoopStopsWithoutTickWhenCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	clock := &steppingClock{now: threeAM.Add(59 * time.Second), limit: 0, cancel: cancel}
	scanner := &fakeScanner{}
	s, _ := newTestScheduler(scanner)
	s.now = clock.Now
	s.sleep = clock.Sleep

	_, err := s.Register(testScope, "* * * * *", models.ScanModeCheckOnly)
	require.NoError(t, err)

	s.loop(ctx)
	s.Wait()

	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
	assert.Zero(t, scanner.scanCount())
}

func TestSleepCtx(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepCtx(ctx, 0), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), 0))
}
