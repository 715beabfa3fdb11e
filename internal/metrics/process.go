// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ffmpegSpawnTotal counts subprocess spawn attempts by function and result.
	ffmpegSpawnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camio_ffmpeg_spawn_total",
		Help: "Total ffmpeg spawn attempts by function and result",
	}, []string{"function", "result"})

	// ffmpegExitTotal counts subprocess exits by function and classification.
	ffmpegExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camio_ffmpeg_exit_total",
		Help: "Total ffmpeg exits by function and exit class",
	}, []string{"function", "class"})

	ffmpegRuntime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "camio_ffmpeg_runtime_seconds",
		Help:    "Lifetime of ffmpeg subprocesses",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1s to ~3d
	}, []string{"function"})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camio_proc_terminate_total",
		Help: "Process group termination signals by signal and outcome",
	}, []string{"signal", "outcome"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camio_proc_wait_total",
		Help: "Process group termination results",
	}, []string{"result"})
)

// IncSpawn records a spawn attempt. result ∈ {ok,error}.
func IncSpawn(function, result string) {
	ffmpegSpawnTotal.WithLabelValues(normalizeFunction(function), result).Inc()
}

// IncExit records a subprocess exit with its classification.
func IncExit(function, class string) {
	ffmpegExitTotal.WithLabelValues(normalizeFunction(function), normalizeExitClass(class)).Inc()
}

// ObserveRuntime records how long a subprocess ran.
func ObserveRuntime(function string, seconds float64) {
	ffmpegRuntime.WithLabelValues(normalizeFunction(function)).Observe(seconds)
}

func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

func IncProcWait(result string) {
	procWaitTotal.WithLabelValues(result).Inc()
}

func normalizeFunction(fn string) string {
	switch fn {
	case "stream", "record", "thumbnail":
		return fn
	default:
		return "unknown"
	}
}

func normalizeExitClass(class string) string {
	switch class {
	case "clean", "stopped", "abnormal":
		return class
	default:
		return "unknown"
	}
}
