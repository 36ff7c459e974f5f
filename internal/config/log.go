// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/groupfs/internal/domain"
)

// logOutput routes the global logger to the console or a rotating file.
type logOutput struct {
	mu   sync.Mutex
	file *lumberjack.Logger
}

func (o *logOutput) apply(cfg *domain.Config) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var w io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	}

	if cfg.LogPath != "" {
		path := cfg.LogPath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		if o.file != nil {
			_ = o.file.Close()
		}
		o.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
		}
		w = o.file
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	setGlobalLevel(cfg.LogLevel)
	return nil
}

func (o *logOutput) setLevel(level string) {
	setGlobalLevel(level)
}

func (o *logOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	return err
}

func setGlobalLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("config: unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	if zerolog.GlobalLevel() != lvl {
		zerolog.SetGlobalLevel(lvl)
		log.Debug().Str("level", lvl.String()).Msg("config: log level set")
	}
}
