// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import "time"

// Options controls crawl page size and the pacing of remote calls.
type Options struct {
	// PageSize is the file_count sent with every listing request.
	PageSize int

	// BatchSize is the number of inventory items processed before a batch pause.
	BatchSize int

	// ItemDelay is the pause between two remote calls inside a batch.
	ItemDelay time.Duration

	// BatchDelay is the pause between two batches. No pause follows the last batch.
	BatchDelay time.Duration

	// DeleteDelay is the pause between deletes of explicitly selected files.
	DeleteDelay time.Duration
}

// DefaultOptions returns the pacing the remote platform tolerates without throttling.
func DefaultOptions() Options {
	return Options{
		PageSize:    2000,
		BatchSize:   50,
		ItemDelay:   200 * time.Millisecond,
		BatchDelay:  time.Second,
		DeleteDelay: 500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PageSize <= 0 {
		o.PageSize = def.PageSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.ItemDelay < 0 {
		o.ItemDelay = 0
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.DeleteDelay < 0 {
		o.DeleteDelay = 0
	}
	return o
}

// StorageLimit is the configured ceiling for a scope. Zero disables a bound.
type StorageLimit struct {
	MaxFiles int
	MaxGB    float64
}
