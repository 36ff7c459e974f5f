// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"context"
	"errors"
	"fmt"

	"github.com/autobrr/groupfs/internal/remote"
)

// FailureClass is the outcome of classifying a remote error.
type FailureClass int

const (
	ClassNone FailureClass = iota
	// ClassExpired means the platform reported the content as gone.
	ClassExpired
	// ClassTransient covers every failure that says nothing about the content.
	ClassTransient
	// ClassFatal aborts the run.
	ClassFatal
)

func (c FailureClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassExpired:
		return "expired"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classify is the only place that decides whether an error means a file is gone.
// Only the platform's content-missing code does; anything unrecognised is transient.
func Classify(err error) FailureClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, remote.ErrConnectionUnavailable),
		errors.Is(err, remote.ErrInvalidScope),
		errors.Is(err, context.Canceled):
		return ClassFatal
	}

	if rerr, ok := remote.AsError(err); ok && rerr.PlatformCode == remote.CodeContentMissing {
		return ClassExpired
	}
	return ClassTransient
}

// Status is the validity of one file.
type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	// StatusUnknown is never acted on.
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Verdict is the result of checking one file.
type Verdict struct {
	FileID string
	Status Status
	Class  FailureClass
	Err    error
}

// Check resolves the file's link and classifies the answer. The returned error
// is non-nil only for fatal failures; transient ones are carried in the verdict.
func Check(ctx context.Context, client remote.Client, scope remote.Scope, rec FileRecord) (Verdict, error) {
	_, err := client.ResolveLink(ctx, scope, rec.ID)
	v := Verdict{FileID: rec.ID, Class: Classify(err), Err: err}

	if err != nil && ctx.Err() != nil {
		v.Class = ClassFatal
	}

	switch v.Class {
	case ClassNone:
		v.Status = StatusValid
	case ClassExpired:
		v.Status = StatusInvalid
	case ClassFatal:
		v.Status = StatusUnknown
		return v, fmt.Errorf("resolve %s: %w", rec.ID, err)
	default:
		v.Status = StatusUnknown
	}
	return v, nil
}
