// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"errors"
	"fmt"

	"github.com/ManuGH/camio/internal/camera"
	"github.com/ManuGH/camio/internal/ffmpeg"
)

var (
	// ErrAlreadyRecording is returned when a recording is active or starting.
	ErrAlreadyRecording = errors.New("camera is already recording")
	// ErrSpawnFailed wraps subprocess start failures.
	ErrSpawnFailed = errors.New("recording: spawn failed")
	// ErrDiscarded is matched by errors.Is on an AbnormalExitError.
	ErrDiscarded = errors.New("recording discarded")
)

// ExclusivityError rejects a recording on a camera whose device is already held
// by its live stream.
type ExclusivityError struct {
	CameraID   int64
	CameraType camera.Type
}

func (e *ExclusivityError) Error() string {
	return fmt.Sprintf("camera %d (%s) is streaming and its device cannot be opened twice; stop the stream first", e.CameraID, e.CameraType)
}

// AbnormalExitError reports a recording process that failed; its row was deleted.
type AbnormalExitError struct {
	CameraID int64
	Status   ffmpeg.ExitStatus
}

func (e *AbnormalExitError) Error() string {
	return fmt.Sprintf("recording of camera %d failed: ffmpeg exited with code %d", e.CameraID, e.Status.Code)
}

func (e *AbnormalExitError) Is(target error) bool { return target == ErrDiscarded }
