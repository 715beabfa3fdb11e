// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

func Prepare(*exec.Cmd) {}

// Signal can only force-kill the leader. SIGTERM reports ErrUnsupported and
// Terminate escalates after grace.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if sig != syscall.SIGKILL {
		return errors.ErrUnsupported
	}
	return cmd.Process.Kill()
}
