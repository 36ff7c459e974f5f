// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/groupfs/internal/domain"
	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/cronsched"
	"github.com/autobrr/groupfs/internal/services/filescan"
)

func TestParseSchedules(t *testing.T) {
	t.Parallel()

	specs, err := ParseSchedules([]string{
		"111:0 3 * * *",
		"",
		"nope",
		"222:*/5 * * * *:delete",
		"333:not cron",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cronsched.ErrInvalidSchedule)

	require.Len(t, specs, 2)
	assert.Equal(t, remote.Scope(111), specs[0].Scope)
	assert.Equal(t, cronsched.DefaultScheduledMode, specs[0].Mode)
	assert.Equal(t, remote.Scope(222), specs[1].Scope)
	assert.Equal(t, models.ScanModeCheckAndDelete, specs[1].Mode)

	specs, err = ParseSchedules(nil)
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestParseStorageLimits(t *testing.T) {
	t.Parallel()

	limits, err := ParseStorageLimits([]string{
		"111:1000:8",
		"222:0:2.5",
		"111:500:0",
		"333:ten:1",
		"444:1",
		"-1:1:1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStorageLimit)
	assert.ErrorIs(t, err, remote.ErrInvalidScope)

	assert.Equal(t, map[remote.Scope]filescan.StorageLimit{
		111: {MaxFiles: 500},
		222: {MaxGB: 2.5},
	}, limits)
}

func TestServiceConversions(t *testing.T) {
	t.Parallel()

	cfg := &domain.Config{
		OneBotURL:            "http://bot:3000",
		OneBotAccessToken:    "tok",
		OneBotTimeoutSeconds: 10,
		OneBotRateLimit:      2,
		OneBotRateBurst:      3,
		OneBotRetries:        -1,
		PageSize:             100,
		BatchSize:            20,
		ItemDelayMs:          150,
		BatchDelayMs:         900,
		DeleteDelayMs:        400,
		MaxConcurrentRuns:    0,
		QuotaAfterScan:       false,
		NotifyEvents:         []string{"quota_warning", "scan_failed"},
	}

	bot := OneBotConfig(cfg)
	assert.Equal(t, "http://bot:3000", bot.BaseURL)
	assert.Equal(t, 10*time.Second, bot.Timeout)
	assert.Equal(t, 3, bot.RateBurst)
	assert.Equal(t, uint(0), bot.Retries)

	opts := ScanOptions(cfg)
	assert.Equal(t, filescan.Options{
		PageSize:    100,
		BatchSize:   20,
		ItemDelay:   150 * time.Millisecond,
		BatchDelay:  900 * time.Millisecond,
		DeleteDelay: 400 * time.Millisecond,
	}, opts)

	sched := SchedulerConfig(cfg)
	assert.Equal(t, cronsched.DefaultConfig().MaxConcurrentRuns, sched.MaxConcurrentRuns)
	assert.False(t, sched.CheckQuotaAfterScan)

	events, err := NotifyEvents(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"scan_failed", "quota_warning"}, events)

	_, err = NotifyEvents(&domain.Config{NotifyEvents: []string{"bogus"}})
	require.Error(t, err)
}
