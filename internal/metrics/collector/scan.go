// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/groupfs/internal/remote"
)

// ScanCollector counts file checks, deletes and scheduler runs. It satisfies
// both the filescan recorder and the scheduler observer.
type ScanCollector struct {
	ChecksTotal     *prometheus.CounterVec
	DeletesTotal    *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	RunsSkipped     *prometheus.CounterVec
	RunsInFlight    prometheus.Gauge
	RunDurationSecs *prometheus.HistogramVec
}

func NewScanCollector(r *prometheus.Registry) *ScanCollector {
	m := &ScanCollector{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupfs",
			Subsystem: "scan",
			Name:      "checks_total",
			Help:      "Total number of file link checks by verdict",
		}, []string{"scope", "status"}),
		DeletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupfs",
			Subsystem: "scan",
			Name:      "deletes_total",
			Help:      "Total number of delete attempts by result",
		}, []string{"scope", "result"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupfs",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total number of scan runs by trigger and result",
		}, []string{"scope", "trigger", "result"}),
		RunsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupfs",
			Subsystem: "scheduler",
			Name:      "runs_skipped_total",
			Help:      "Total number of due runs skipped",
		}, []string{"scope", "reason"}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "groupfs",
			Subsystem: "scheduler",
			Name:      "runs_in_flight",
			Help:      "Number of scan runs currently executing",
		}),
		RunDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "groupfs",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of scan runs",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 10800},
		}, []string{"trigger"}),
	}

	r.MustRegister(m.ChecksTotal)
	r.MustRegister(m.DeletesTotal)
	r.MustRegister(m.RunsTotal)
	r.MustRegister(m.RunsSkipped)
	r.MustRegister(m.RunsInFlight)
	r.MustRegister(m.RunDurationSecs)
	return m
}

func scopeLabel(scope remote.Scope) string {
	return strconv.FormatInt(int64(scope), 10)
}

func (m *ScanCollector) RecordCheck(scope remote.Scope, status string) {
	m.ChecksTotal.WithLabelValues(scopeLabel(scope), status).Inc()
}

func (m *ScanCollector) RecordDelete(scope remote.Scope, success bool) {
	result := "failed"
	if success {
		result = "deleted"
	}
	m.DeletesTotal.WithLabelValues(scopeLabel(scope), result).Inc()
}

func (m *ScanCollector) RunStarted(remote.Scope, string) {
	m.RunsInFlight.Inc()
}

func (m *ScanCollector) RunFinished(scope remote.Scope, trigger string, failed bool, took time.Duration) {
	m.RunsInFlight.Dec()
	result := "completed"
	if failed {
		result = "failed"
	}
	m.RunsTotal.WithLabelValues(scopeLabel(scope), trigger, result).Inc()
	m.RunDurationSecs.WithLabelValues(trigger).Observe(took.Seconds())
}

func (m *ScanCollector) RunSkipped(scope remote.Scope, reason string) {
	m.RunsSkipped.WithLabelValues(scopeLabel(scope), reason).Inc()
}
