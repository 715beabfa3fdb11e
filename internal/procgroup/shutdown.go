// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/camio/internal/metrics"
)

// Terminate stops a process group: SIGTERM, then SIGKILL if exited has not closed
// within grace. exited must be closed by whoever owns cmd.Wait().
// It reports whether SIGKILL was needed. Safe to call on nil commands.
func Terminate(cmd *exec.Cmd, exited <-chan struct{}, grace time.Duration) (forced bool) {
	if cmd == nil || cmd.Process == nil {
		return false
	}

	signal(cmd, syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-exited:
		metrics.IncProcWait("graceful")
		return false
	case <-timer.C:
	}

	signal(cmd, syscall.SIGKILL)
	<-exited
	metrics.IncProcWait("forced")
	return true
}

func signal(cmd *exec.Cmd, sig syscall.Signal) {
	name := "SIGTERM"
	if sig == syscall.SIGKILL {
		name = "SIGKILL"
	}
	err := Signal(cmd, sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(name, "sent")
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		metrics.IncProcTerminate(name, "esrch")
	case errors.Is(err, errors.ErrUnsupported):
		metrics.IncProcTerminate(name, "unsupported")
	default:
		metrics.IncProcTerminate(name, "error")
	}
}
