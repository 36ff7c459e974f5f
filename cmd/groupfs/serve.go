// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/groupfs/internal/api"
	"github.com/autobrr/groupfs/internal/api/handlers"
	"github.com/autobrr/groupfs/internal/buildinfo"
	"github.com/autobrr/groupfs/internal/config"
	"github.com/autobrr/groupfs/internal/domain"
	"github.com/autobrr/groupfs/internal/metrics"
	"github.com/autobrr/groupfs/internal/services/cronsched"
	"github.com/autobrr/groupfs/internal/update"
)

const shutdownTimeout = 15 * time.Second

func RunServeCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled scans and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configDir)
		},
	}

	addConfigFlag(cmd, &configDir)
	return cmd
}

func serve(ctx context.Context, configDir string) error {
	a, err := newApp(configDir, true)
	if err != nil {
		return err
	}
	defer a.Close()

	c := a.cfg.Current()
	c.Version = buildinfo.Version
	log.Info().Str("version", buildinfo.Version).Str("config", a.cfg.ConfigDir()).Msg("starting groupfs")

	a.notifier.Start(ctx)

	scheduler := cronsched.New(config.SchedulerConfig(c), a.files, a.notifier)

	var metricsServer *metrics.Server
	if c.MetricsEnabled {
		manager := metrics.NewManager(a.handle, scheduler)
		a.files.SetRecorder(manager.Scan())
		scheduler.SetObserver(manager.Scan())
		metricsServer = metrics.NewMetricsServer(manager, c.MetricsHost, c.MetricsPort, c.MetricsBasicAuthUsers)
	}

	applySchedules(scheduler, c)
	a.cfg.OnChange(func(next *domain.Config) {
		applySchedules(scheduler, next)
		limits, err := config.ParseStorageLimits(next.StorageLimits)
		if err != nil {
			log.Warn().Err(err).Msg("some storage limits were ignored")
		}
		a.files.SetStorageLimits(limits)
	})
	a.cfg.Watch()

	deps := &api.Dependencies{
		Config:    c,
		Scheduler: scheduler,
		Files:     a.files,
		Ready: []handlers.ReadyFunc{func(ctx context.Context) error {
			_, err := a.handle.Get(ctx)
			return err
		}},
	}
	if c.CheckForUpdates {
		updater := update.NewUpdater(update.Config{Version: buildinfo.Version})
		deps.Releases = updater
		go logAvailableUpdate(ctx, updater)
	}
	apiServer := api.NewServer(deps)

	g, gctx := errgroup.WithContext(ctx)
	scheduler.Start(gctx)

	g.Go(apiServer.ListenAndServe)
	if metricsServer != nil {
		g.Go(metricsServer.ListenAndServe)
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("api server shutdown failed")
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("metrics server shutdown failed")
			}
		}
		return nil
	})

	err = g.Wait()
	scheduler.Wait()
	return err
}

func applySchedules(scheduler *cronsched.Scheduler, cfg *domain.Config) {
	specs, err := config.ParseSchedules(cfg.Schedules)
	if err != nil {
		log.Warn().Err(err).Msg("some schedules were ignored")
	}
	if err := scheduler.SetSchedules(specs); err != nil {
		log.Error().Err(err).Msg("failed to apply schedules")
	}
	log.Info().Int("jobs", len(specs)).Msg("schedules applied")
}

func logAvailableUpdate(ctx context.Context, updater *update.Updater) {
	latest, newer, err := updater.Check(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("update check failed")
		return
	}
	if newer {
		log.Info().Str("current", buildinfo.Version).Str("latest", latest.Version()).Msg("a new version is available")
	}
}
