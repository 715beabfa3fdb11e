// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"errors"
	"os/exec"
	"syscall"
)

// ExitClass is the orchestrators' view of a subprocess exit code.
type ExitClass string

const (
	ExitClean    ExitClass = "clean"
	ExitStopped  ExitClass = "stopped"
	ExitAbnormal ExitClass = "abnormal"
)

// ffmpeg exits with 255 after handling SIGINT/SIGTERM itself.
const exitCodeHandledSignal = 255

// Classify maps an exit code to its class. 0 is clean; 255 and 128+SIGINT/SIGTERM
// are the result of a graceful stop; everything else is abnormal.
func Classify(code int) ExitClass {
	switch code {
	case 0:
		return ExitClean
	case exitCodeHandledSignal, 128 + int(syscall.SIGINT), 128 + int(syscall.SIGTERM):
		return ExitStopped
	default:
		return ExitAbnormal
	}
}

// Graceful reports whether the output of the process can be trusted.
func (c ExitClass) Graceful() bool {
	return c == ExitClean || c == ExitStopped
}

// exitCode extracts the exit code from a Wait error. A process killed by a
// signal reports 128+signal, like a shell would.
func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return -1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}
