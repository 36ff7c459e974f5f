// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"context"
	"time"
)

// Pacer spaces out remote calls.
type Pacer interface {
	// Wait blocks for d or until ctx is done.
	Wait(ctx context.Context, d time.Duration) error
}

// PacerFunc adapts a function to Pacer.
type PacerFunc func(ctx context.Context, d time.Duration) error

func (f PacerFunc) Wait(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerPacer waits on a wall-clock timer.
type TimerPacer struct{}

func (TimerPacer) Wait(ctx context.Context, d time.Duration) error {
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
