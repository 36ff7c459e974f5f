// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/metrics/collector"
	"github.com/autobrr/groupfs/internal/remote"
)

type Manager struct {
	registry       *prometheus.Registry
	stateCollector *StateCollector
	scanCollector  *collector.ScanCollector
}

func NewManager(handle *remote.Handle, jobs JobSource) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stateCollector := NewStateCollector(handle, jobs)
	registry.MustRegister(stateCollector)

	scanCollector := collector.NewScanCollector(registry)

	log.Info().Msg("Metrics manager initialized with scan collectors")

	return &Manager{
		registry:       registry,
		stateCollector: stateCollector,
		scanCollector:  scanCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Scan returns the counters fed by scans and the scheduler.
func (m *Manager) Scan() *collector.ScanCollector {
	return m.scanCollector
}
