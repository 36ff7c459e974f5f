// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"context"
	"sync"
	"time"

	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/remote/remotetest"
	"github.com/autobrr/groupfs/internal/services/notifications"
)

// recordingPacer returns immediately and remembers every requested pause.
type recordingPacer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (p *recordingPacer) Wait(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.waits = append(p.waits, d)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *recordingPacer) count(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, w := range p.waits {
		if w == d {
			n++
		}
	}
	return n
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

type countingRecorder struct {
	mu      sync.Mutex
	checks  map[string]int
	deletes map[bool]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{checks: map[string]int{}, deletes: map[bool]int{}}
}

func (r *countingRecorder) RecordCheck(_ remote.Scope, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[status]++
}

func (r *countingRecorder) RecordDelete(_ remote.Scope, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes[success]++
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const testScope remote.Scope = 424242

func contentMissing(fileID string) error {
	return remote.NewError("get_group_file_url", 1200, "get file url failed", "file "+fileID+" expired (-134)")
}

func newTestRunner(store *remotetest.Store) (*Runner, *recordingPacer) {
	pacer := &recordingPacer{}
	r := NewRunner(store, DefaultOptions(), pacer, nil)
	r.now = func() time.Time { return fixedNow }
	return r, pacer
}

func newTestService(store *remotetest.Store) (*Service, *recordingPacer, *recordingNotifier) {
	h := remote.NewHandle(nil)
	h.Set(store)
	notifier := &recordingNotifier{}
	svc := NewService(h, DefaultOptions(), notifier)
	pacer := &recordingPacer{}
	svc.pacer = pacer
	svc.now = func() time.Time { return fixedNow }
	return svc, pacer, notifier
}

func recordIDs(records []FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
