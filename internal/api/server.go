// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/api/handlers"
	"github.com/autobrr/groupfs/internal/api/middleware"
	"github.com/autobrr/groupfs/internal/domain"
)

const (
	compressMinSize = 1024
	compressLevel   = 5
)

// Dependencies are the services the API exposes.
type Dependencies struct {
	Config    *domain.Config
	Scheduler handlers.Scheduler
	Files     handlers.FileService
	Releases  handlers.ReleaseChecker
	Ready     []handlers.ReadyFunc
}

type Server struct {
	deps   *Dependencies
	server *http.Server
}

func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	cfg := s.deps.Config

	allowed, err := cfg.ParseAPIAllowedCIDRs()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(middleware.Compress(compressMinSize, compressLevel))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.HeaderAPIKey, "X-Requested-With"},
		AllowCredentials: allowCredentials(cfg.CORSAllowedOrigins),
		MaxAge:           300,
	})
	r.Use(c.Handler)

	health := handlers.NewHealthHandler(s.deps.Ready...)
	scans := handlers.NewScanHandler(s.deps.Scheduler)
	files := handlers.NewFilesHandler(s.deps.Files)
	version := handlers.NewVersionHandler(s.deps.Releases)

	r.Route("/api", func(r chi.Router) {
		r.Route("/healthz", health.Routes)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIPAllowlist(allowed))
			r.Use(middleware.APIKeyFromQuery("apikey"))
			r.Use(middleware.RequireAPIKey(cfg.APIKey))

			r.Route("/scopes/{scope}", func(r chi.Router) {
				r.Post("/scan", scans.TriggerScan)
				r.Get("/quota", files.GetQuota)
				r.Get("/files", files.SearchFiles)
				r.Delete("/files", files.DeleteFiles)
			})

			r.Get("/jobs", scans.ListJobs)
			r.Get("/version", version.GetVersion)
			r.Get("/version/latest", version.GetLatestVersion)
		})
	})

	return r, nil
}

// allowCredentials is only enabled for an explicit origin list. With no list
// rs/cors answers with a wildcard origin, which must not carry credentials.
func allowCredentials(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return false
		}
	}
	return len(origins) > 0
}

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.deps.Config.Host, strconv.Itoa(s.deps.Config.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("api: starting server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
