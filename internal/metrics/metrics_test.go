// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counterVec.WithLabelValues(labels...).Write(metric))
	return metric.GetCounter().GetValue()
}

func getGaugeVecValue(t *testing.T, gaugeVec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gaugeVec.WithLabelValues(labels...).Write(metric))
	return metric.GetGauge().GetValue()
}

func TestIncExit_NormalizesLabels(t *testing.T) {
	initial := getCounterVecValue(t, ffmpegExitTotal, "unknown", "unknown")
	IncExit("bogus", "weird")
	assert.Equal(t, initial+1, getCounterVecValue(t, ffmpegExitTotal, "unknown", "unknown"))

	initial = getCounterVecValue(t, ffmpegExitTotal, "record", "abnormal")
	IncExit("record", "abnormal")
	assert.Equal(t, initial+1, getCounterVecValue(t, ffmpegExitTotal, "record", "abnormal"))
}

func TestSetActive(t *testing.T) {
	SetActive("stream", 3)
	assert.Equal(t, 3.0, getGaugeVecValue(t, activeProcesses, "stream"))
	SetActive("stream", 0)
	assert.Equal(t, 0.0, getGaugeVecValue(t, activeProcesses, "stream"))
}

func TestIncStartRejected_ReasonAllowlist(t *testing.T) {
	testCases := []struct {
		reason string
		want   string
	}{
		{"exclusivity", "exclusivity"},
		{"resolution", "resolution"},
		{"something_else", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.reason, func(t *testing.T) {
			initial := getCounterVecValue(t, startRejectedTotal, "record", tc.want)
			IncStartRejected("record", tc.reason)
			assert.Equal(t, initial+1, getCounterVecValue(t, startRejectedTotal, "record", tc.want))
		})
	}
}
