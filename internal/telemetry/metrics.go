/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and optional OTLP tracing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClipsPlayed counts clips dispatched to the playout server by kind.
	ClipsPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skuld_clips_played_total",
		Help: "Clips dispatched to the playout server, by kind.",
	}, []string{"kind"})

	// SlotFires counts mandatory slot segments fired.
	SlotFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skuld_slot_fires_total",
		Help: "Mandatory slot segments fired.",
	})

	// CycleErrors counts scheduler cycles recovered at the loop boundary.
	CycleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skuld_cycle_errors_total",
		Help: "Scheduler cycles that hit the recovery boundary.",
	})

	// ProbeFailures counts failed duration probes.
	ProbeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skuld_probe_failures_total",
		Help: "ffprobe invocations that failed or timed out.",
	})

	// CasparErrors counts playout server commands that got no response.
	CasparErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skuld_caspar_errors_total",
		Help: "CasparCG commands that failed to get a response.",
	})

	// ClipsSkipped counts clips skipped because the file vanished before playback.
	ClipsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skuld_clips_skipped_total",
		Help: "Clips skipped because the file disappeared between selection and playback.",
	})

	// QueueDepth tracks the play queue length after the latest refill.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skuld_queue_depth",
		Help: "Play queue length after the most recent refill.",
	})

	// SecondsToSlot tracks the latest computed time until the next slot.
	SecondsToSlot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skuld_seconds_to_slot",
		Help: "Seconds until the next mandatory slot, as last computed.",
	})

	// APIRequestsTotal counts status API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skuld_api_requests_total",
		Help: "Status API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes status API latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skuld_api_request_duration_seconds",
		Help:    "Status API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})
)
