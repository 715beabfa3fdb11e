// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package input

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/ManuGH/camio/internal/camera"
)

// DirectResolver opens a local V4L2 device and always re-encodes with libx264.
type DirectResolver struct{}

func (r *DirectResolver) Resolve(_ context.Context, cam *camera.Camera, fn camera.Function) (Input, error) {
	if cam.DevicePath == "" {
		return Input{}, resolutionError(KindMissingConfig, nil, "camera %d has no device path", cam.ID)
	}
	if _, err := os.Stat(cam.DevicePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Input{}, resolutionError(KindDeviceNotFound, ErrDeviceNotFound, "device not found: %s", cam.DevicePath)
		}
		return Input{}, resolutionError(KindDeviceNotFound, err, "device %s not accessible: %v", cam.DevicePath, err)
	}

	in := Input{
		Locator:      cam.DevicePath,
		PreInputArgs: []string{"-f", "v4l2"},
	}
	// V4L2 devices deliver raw or MJPEG frames, so copying is not possible.
	// Recording trades CPU for size with a slower preset; live favours latency.
	if fn == camera.FunctionRecord {
		in.CodecArgs = []string{"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-pix_fmt", "yuv420p", "-an"}
	} else {
		in.CodecArgs = []string{"-c:v", "libx264", "-preset", "ultrafast", "-tune", "zerolatency", "-pix_fmt", "yuv420p", "-an"}
	}
	return in, nil
}
