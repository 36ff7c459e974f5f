// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/groupfs/internal/config"
	"github.com/autobrr/groupfs/internal/onebot"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/filescan"
	"github.com/autobrr/groupfs/internal/services/notifications"
)

// app holds the services shared by every command.
type app struct {
	cfg      *config.AppConfig
	handle   *remote.Handle
	files    *filescan.Service
	notifier *notifications.Service
}

func addConfigFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "config-dir", "", "config directory or config.toml path (default: user config dir)")
}

// newApp wires the shared services. With queued set, notifications go through
// the service queue and the caller must Start it; otherwise they are sent inline.
func newApp(configDir string, queued bool) (*app, error) {
	cfg, err := config.New(configDir)
	if err != nil {
		return nil, err
	}
	c := cfg.Current()

	var factory remote.Factory
	if c.OneBotURL != "" {
		factory = onebot.Dial(config.OneBotConfig(c))
	} else {
		log.Warn().Msg("onebotUrl is not configured, remote calls will fail")
	}
	handle := remote.NewHandle(factory)

	events, err := config.NotifyEvents(c)
	if err != nil {
		return nil, err
	}

	var sender notifications.Sender = notifications.LogSender{Logger: log.Logger}
	if c.NotifyChat && factory != nil {
		sender = chatSender{handle: handle}
	}
	notifier := notifications.NewService(sender, events, log.Logger)

	var fileEvents notifications.Notifier = notifier.Inline()
	if queued {
		fileEvents = notifier
	}
	files := filescan.NewService(handle, config.ScanOptions(c), fileEvents)
	limits, err := config.ParseStorageLimits(c.StorageLimits)
	if err != nil {
		log.Warn().Err(err).Msg("some storage limits were ignored")
	}
	files.SetStorageLimits(limits)

	return &app{
		cfg:      cfg,
		handle:   handle,
		files:    files,
		notifier: notifier,
	}, nil
}

func (a *app) Close() {
	if err := a.cfg.Close(); err != nil {
		log.Debug().Err(err).Msg("closing log output")
	}
}

// chatSender posts through the remote connection when it can send messages.
type chatSender struct {
	handle *remote.Handle
}

var errNoChatSupport = errors.New("remote client cannot send group messages")

func (s chatSender) SendGroupMessage(ctx context.Context, scope remote.Scope, text string) error {
	client, err := s.handle.Get(ctx)
	if err != nil {
		return err
	}
	sender, ok := client.(notifications.Sender)
	if !ok {
		return errNoChatSupport
	}
	return sender.SendGroupMessage(ctx, scope, text)
}
