// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/domain"
	"github.com/autobrr/groupfs/internal/onebot"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/cronsched"
	"github.com/autobrr/groupfs/internal/services/filescan"
	"github.com/autobrr/groupfs/internal/services/notifications"
)

var ErrInvalidStorageLimit = errors.New("invalid storage limit")

// ParseSchedules returns the valid schedule entries. Invalid entries are
// logged, skipped and reported in the joined error.
func ParseSchedules(entries []string) ([]cronsched.JobSpec, error) {
	specs := make([]cronsched.JobSpec, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		spec, err := cronsched.ParseJobSpec(entry)
		if err != nil {
			log.Warn().Err(err).Str("entry", entry).Msg("config: skipping invalid schedule")
			errs = append(errs, err)
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errors.Join(errs...)
}

// ParseStorageLimits parses "scope:maxFiles:maxGB" entries. Later entries for
// the same scope win.
func ParseStorageLimits(entries []string) (map[remote.Scope]filescan.StorageLimit, error) {
	limits := make(map[remote.Scope]filescan.StorageLimit, len(entries))
	var errs []error
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		scope, limit, err := parseStorageLimit(entry)
		if err != nil {
			log.Warn().Err(err).Str("entry", entry).Msg("config: skipping invalid storage limit")
			errs = append(errs, err)
			continue
		}
		limits[scope] = limit
	}
	return limits, errors.Join(errs...)
}

func parseStorageLimit(entry string) (remote.Scope, filescan.StorageLimit, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 3 {
		return 0, filescan.StorageLimit{}, fmt.Errorf("%w: %q: want scope:maxFiles:maxGB", ErrInvalidStorageLimit, entry)
	}

	scope, err := remote.ParseScope(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, filescan.StorageLimit{}, err
	}

	maxFiles, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || maxFiles < 0 {
		return 0, filescan.StorageLimit{}, fmt.Errorf("%w: %q: bad file count", ErrInvalidStorageLimit, entry)
	}

	maxGB, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || maxGB < 0 {
		return 0, filescan.StorageLimit{}, fmt.Errorf("%w: %q: bad size", ErrInvalidStorageLimit, entry)
	}

	return scope, filescan.StorageLimit{MaxFiles: maxFiles, MaxGB: maxGB}, nil
}

func OneBotConfig(cfg *domain.Config) onebot.Config {
	retries := cfg.OneBotRetries
	if retries < 0 {
		retries = 0
	}
	return onebot.Config{
		BaseURL:     cfg.OneBotURL,
		AccessToken: cfg.OneBotAccessToken,
		Timeout:     time.Duration(cfg.OneBotTimeoutSeconds) * time.Second,
		RateLimit:   cfg.OneBotRateLimit,
		RateBurst:   cfg.OneBotRateBurst,
		Retries:     uint(retries),
	}
}

func ScanOptions(cfg *domain.Config) filescan.Options {
	return filescan.Options{
		PageSize:    cfg.PageSize,
		BatchSize:   cfg.BatchSize,
		ItemDelay:   time.Duration(cfg.ItemDelayMs) * time.Millisecond,
		BatchDelay:  time.Duration(cfg.BatchDelayMs) * time.Millisecond,
		DeleteDelay: time.Duration(cfg.DeleteDelayMs) * time.Millisecond,
	}
}

func SchedulerConfig(cfg *domain.Config) cronsched.Config {
	out := cronsched.DefaultConfig()
	if cfg.MaxConcurrentRuns > 0 {
		out.MaxConcurrentRuns = cfg.MaxConcurrentRuns
	}
	out.CheckQuotaAfterScan = cfg.QuotaAfterScan
	return out
}

// NotifyEvents validates the configured event filter.
func NotifyEvents(cfg *domain.Config) ([]string, error) {
	return notifications.NormalizeEventTypes(cfg.NotifyEvents)
}
