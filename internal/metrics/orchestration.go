// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeProcesses = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "camio_active_processes",
		Help: "Currently registered ffmpeg subprocesses by function",
	}, []string{"function"})

	startRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camio_start_rejected_total",
		Help: "Start requests rejected before spawn, by function and reason",
	}, []string{"function", "reason"})

	thumbnailTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camio_thumbnail_total",
		Help: "Thumbnail extraction attempts by result",
	}, []string{"result"})

	recordingFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camio_recording_finalized_total",
		Help: "Recordings finalized by outcome",
	}, []string{"outcome"})
)

// SetActive publishes the registry size for a function.
func SetActive(function string, n int) {
	activeProcesses.WithLabelValues(normalizeFunction(function)).Set(float64(n))
}

// IncStartRejected records a start refused before any subprocess was spawned.
// reason ∈ {resolution,exclusivity,already_active,not_found,spawn,unknown}
func IncStartRejected(function, reason string) {
	switch reason {
	case "resolution", "exclusivity", "already_active", "not_found", "spawn":
	default:
		reason = "unknown"
	}
	startRejectedTotal.WithLabelValues(normalizeFunction(function), reason).Inc()
}

// IncThumbnail records a thumbnail extraction result. result ∈ {ok,error,skipped}.
func IncThumbnail(result string) {
	thumbnailTotal.WithLabelValues(result).Inc()
}

// IncRecordingFinalized records the end state of a recording. outcome ∈ {finished,discarded,failed}.
func IncRecordingFinalized(outcome string) {
	recordingFinalizedTotal.WithLabelValues(outcome).Inc()
}
