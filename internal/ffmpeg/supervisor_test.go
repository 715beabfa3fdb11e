// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package ffmpeg

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func spawnShell(t *testing.T, script string) (Process, <-chan ExitStatus, *atomic.Int32) {
	t.Helper()
	statusCh := make(chan ExitStatus, 1)
	calls := &atomic.Int32{}
	p, err := NewSupervisor("stream").Spawn([]string{"sh", "-c", script}, func(st ExitStatus) {
		calls.Add(1)
		statusCh <- st
	})
	require.NoError(t, err)
	return p, statusCh, calls
}

func waitStatus(t *testing.T, ch <-chan ExitStatus) ExitStatus {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("exit callback not invoked")
		return ExitStatus{}
	}
}

func TestSupervisor_CleanExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, ch, calls := spawnShell(t, "exit 0")
	st := waitStatus(t, ch)
	<-p.Done()

	assert.Equal(t, 0, st.Code)
	assert.Equal(t, ExitClean, st.Class)
	assert.False(t, st.EndedAt.Before(st.StartedAt))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSupervisor_AbnormalExitCapturesStderr(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, ch, _ := spawnShell(t, "echo 'Connection refused' >&2; exit 1")
	st := waitStatus(t, ch)
	<-p.Done()

	assert.Equal(t, 1, st.Code)
	assert.Equal(t, ExitAbnormal, st.Class)
	assert.Equal(t, []string{"Connection refused"}, st.Stderr)
}

func TestSupervisor_OversizedStderrLineStillExits(t *testing.T) {
	defer goleak.VerifyNone(t)

	// 3 MB without a newline, well past the scanner cap and the pipe buffer.
	p, ch, calls := spawnShell(t, `head -c 3000000 /dev/zero | tr '\0' x >&2; exit 3`)
	st := waitStatus(t, ch)
	<-p.Done()

	assert.Equal(t, 3, st.Code)
	assert.Equal(t, ExitAbnormal, st.Class)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSupervisor_StopReportsSignalCode(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, ch, calls := spawnShell(t, "exec sleep 10")
	assert.Greater(t, p.Pid(), 0)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	st := waitStatus(t, ch)
	<-p.Done()

	assert.Equal(t, 143, st.Code)
	assert.Equal(t, ExitStopped, st.Class)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSupervisor_TerminateEscalates(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, ch, _ := spawnShell(t, `trap "" TERM; sleep 10`)
	time.Sleep(100 * time.Millisecond)

	p.Terminate(200 * time.Millisecond)
	st := waitStatus(t, ch)

	assert.Equal(t, 137, st.Code)
	assert.Equal(t, ExitAbnormal, st.Class)
}

func TestSupervisor_SpawnErrors(t *testing.T) {
	_, err := NewSupervisor("record").Spawn(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyArgv)

	_, err = NewSupervisor("record").Spawn([]string{"/nonexistent/ffmpeg"}, func(ExitStatus) {
		t.Error("onExit must not run when spawn fails")
	})
	assert.Error(t, err)
}
