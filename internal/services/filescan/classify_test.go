// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/remote/remotetest"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{name: "nil", err: nil, want: ClassNone},
		{name: "content missing in wording", err: remote.NewError("get_group_file_url", 1200, "", "failed (-134)"), want: ClassExpired},
		{name: "content missing in message", err: remote.NewError("get_group_file_url", 1200, "failed (-134)", ""), want: ClassExpired},
		{name: "wrapped content missing", err: fmt.Errorf("resolve: %w", remote.NewError("get_group_file_url", 1200, "", "(-134)")), want: ClassExpired},
		{name: "content missing before another code", err: remote.NewError("get_group_file_url", 1200, "", "文件已失效(-134)，请稍后重试(-1)"), want: ClassExpired},
		{name: "content missing in message with other wording code", err: remote.NewError("get_group_file_url", 1200, "file expired (-134)", "retry later (-7)"), want: ClassExpired},
		{name: "retcode 1200 alone", err: remote.NewError("get_group_file_url", 1200, "timeout", ""), want: ClassTransient},
		{name: "other platform code", err: remote.NewError("get_group_file_url", 1200, "", "rate limited (-7)"), want: ClassTransient},
		{name: "http status", err: remote.NewError("get_group_file_url", 502, "http status 502", ""), want: ClassTransient},
		{name: "untyped marker is not trusted", err: errors.New("something (-134)"), want: ClassTransient},
		{name: "unexpected response", err: remote.ErrUnexpectedResponse, want: ClassTransient},
		{name: "deadline", err: context.DeadlineExceeded, want: ClassTransient},
		{name: "connection unavailable", err: fmt.Errorf("dial: %w", remote.ErrConnectionUnavailable), want: ClassFatal},
		{name: "invalid scope", err: remote.ErrInvalidScope, want: ClassFatal},
		{name: "canceled", err: context.Canceled, want: ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestCheckVerdicts(t *testing.T) {
	t.Parallel()

	store := remotetest.NewStore()
	store.FailResolve("gone", contentMissing("gone"))
	store.FailResolve("flaky", remote.NewError("get_group_file_url", 1200, "rate limited", ""))
	store.FailResolve("offline", remote.ErrConnectionUnavailable)

	ctx := context.Background()

	v, err := Check(ctx, store, testScope, FileRecord{ID: "fine"})
	require.NoError(t, err)
	assert.Equal(t, StatusValid, v.Status)

	v, err = Check(ctx, store, testScope, FileRecord{ID: "gone"})
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, v.Status)
	assert.Equal(t, ClassExpired, v.Class)

	v, err = Check(ctx, store, testScope, FileRecord{ID: "flaky"})
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, v.Status)
	assert.Equal(t, ClassTransient, v.Class)
	assert.Error(t, v.Err)

	_, err = Check(ctx, store, testScope, FileRecord{ID: "offline"})
	require.ErrorIs(t, err, remote.ErrConnectionUnavailable)
}

func TestCheckTreatsCanceledContextAsFatal(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	store := remotetest.NewStore()
	store.OnResolve = func(context.Context, string) { cancel() }
	store.FailResolve("x", errors.New("request aborted"))

	v, err := Check(ctx, store, testScope, FileRecord{ID: "x"})
	require.Error(t, err)
	assert.Equal(t, ClassFatal, v.Class)
	assert.NotEqual(t, StatusInvalid, v.Status)
}
