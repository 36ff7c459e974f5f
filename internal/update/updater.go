// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package update checks GitHub releases and replaces the running binary.
package update

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/rs/zerolog/log"
)

const DefaultRepository = "autobrr/groupfs"

type Config struct {
	Repository string
	Version    string
}

type Updater struct {
	config Config
	detect func(ctx context.Context, slug string) (*selfupdate.Release, bool, error)
}

func NewUpdater(config Config) *Updater {
	if config.Repository == "" {
		config.Repository = DefaultRepository
	}
	return &Updater{
		config: config,
		detect: func(ctx context.Context, slug string) (*selfupdate.Release, bool, error) {
			return selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(slug))
		},
	}
}

// Check returns the latest release and whether it is newer than the running version.
func (u *Updater) Check(ctx context.Context) (*selfupdate.Release, bool, error) {
	if _, err := semver.NewVersion(u.config.Version); err != nil {
		return nil, false, fmt.Errorf("could not parse version %q: %w", u.config.Version, err)
	}

	latest, found, err := u.detect(ctx, u.config.Repository)
	if err != nil {
		return nil, false, fmt.Errorf("detect latest release: %w", err)
	}
	if !found {
		return nil, false, fmt.Errorf("no release found for %s", u.config.Repository)
	}
	return latest, !latest.LessOrEqual(u.config.Version), nil
}

// Run installs the latest release when it is newer. It returns true when the binary was replaced.
func (u *Updater) Run(ctx context.Context) (bool, error) {
	latest, newer, err := u.Check(ctx)
	if err != nil {
		return false, err
	}
	if !newer {
		log.Info().Str("version", u.config.Version).Msg("update: already running the latest version")
		return false, nil
	}
	if !SelfUpdateSupported() {
		return false, ErrSelfUpdateUnsupported
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return false, fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return false, fmt.Errorf("install %s: %w", latest.Version(), err)
	}

	log.Info().Str("from", u.config.Version).Str("to", latest.Version()).Msg("update: binary replaced")
	return true, nil
}
