// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
)

// JobSource lists registered and running jobs.
type JobSource interface {
	Jobs() []models.JobInfo
}

// StateCollector reports the remote connection state and the job table at scrape time.
type StateCollector struct {
	handle *remote.Handle
	jobs   JobSource

	connectionStatusDesc *prometheus.Desc
	jobsRegisteredDesc   *prometheus.Desc
	jobRunningDesc       *prometheus.Desc
	jobNextRunDesc       *prometheus.Desc
}

func NewStateCollector(handle *remote.Handle, jobs JobSource) *StateCollector {
	return &StateCollector{
		handle: handle,
		jobs:   jobs,

		connectionStatusDesc: prometheus.NewDesc(
			"groupfs_remote_connection_status",
			"Connection status of the remote endpoint (1=connected, 0=disconnected)",
			nil,
			nil,
		),
		jobsRegisteredDesc: prometheus.NewDesc(
			"groupfs_scheduler_jobs_registered",
			"Number of registered scheduled jobs",
			nil,
			nil,
		),
		jobRunningDesc: prometheus.NewDesc(
			"groupfs_scheduler_job_running",
			"Whether a job has a run in flight (1=running)",
			[]string{"scope", "job"},
			nil,
		),
		jobNextRunDesc: prometheus.NewDesc(
			"groupfs_scheduler_job_next_run_timestamp_seconds",
			"Unix time of the next scheduled run",
			[]string{"scope", "job"},
			nil,
		),
	}
}

func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectionStatusDesc
	ch <- c.jobsRegisteredDesc
	ch <- c.jobRunningDesc
	ch <- c.jobNextRunDesc
}

func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	connected := 0.0
	if c.handle != nil && c.handle.Available() {
		connected = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.connectionStatusDesc, prometheus.GaugeValue, connected)

	if c.jobs == nil {
		log.Debug().Msg("metrics: no job source, skipping scheduler metrics")
		return
	}

	registered := 0
	for _, job := range c.jobs.Jobs() {
		scope := strconv.FormatInt(int64(job.Scope), 10)
		if job.Schedule != "" {
			registered++
		}

		running := 0.0
		if job.Running {
			running = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.jobRunningDesc, prometheus.GaugeValue, running, scope, job.Key)

		if job.NextRun != nil {
			ch <- prometheus.MustNewConstMetric(
				c.jobNextRunDesc,
				prometheus.GaugeValue,
				float64(job.NextRun.Unix()),
				scope,
				job.Key,
			)
		}
	}

	ch <- prometheus.MustNewConstMetric(c.jobsRegisteredDesc, prometheus.GaugeValue, float64(registered))
}
