// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package input

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ManuGH/camio/internal/camera"
)

// DefaultRelayPath is used when a relayed camera has no path configured.
const DefaultRelayPath = "/unicast"

// RelayedResolver reads a USB camera republished by an RTSP relay.
// Audio is disabled on this path in both functions.
type RelayedResolver struct{}

func (r *RelayedResolver) Resolve(_ context.Context, cam *camera.Camera, fn camera.Function) (Input, error) {
	if cam.Host == "" {
		return Input{}, resolutionError(KindMissingConfig, nil, "relayed camera %d has no host", cam.ID)
	}
	if cam.Port <= 0 {
		return Input{}, resolutionError(KindMissingConfig, nil, "relayed camera %d has no port", cam.ID)
	}

	path := cam.RelayPath
	if path == "" {
		path = DefaultRelayPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := url.URL{
		Scheme: "rtsp",
		Host:   net.JoinHostPort(cam.Host, strconv.Itoa(cam.Port)),
		Path:   path,
	}
	switch {
	case cam.Username != "" && cam.Password != "":
		u.User = url.UserPassword(cam.Username, cam.Password)
	case cam.Username != "":
		u.User = url.User(cam.Username)
	}

	in := Input{
		Locator:      u.String(),
		PreInputArgs: []string{"-rtsp_transport", "tcp"},
	}
	// The relay already encodes, so recordings copy. Its keyframes are sparse
	// and irregular, which stalls HLS segmenting; live re-encodes with a fixed
	// 30 frame GOP and capped bitrate so segments cut on time.
	if fn == camera.FunctionRecord {
		in.CodecArgs = []string{"-c:v", "copy", "-an"}
	} else {
		in.CodecArgs = []string{
			"-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency",
			"-b:v", "2M", "-maxrate", "2M", "-bufsize", "4M",
			"-g", "30", "-keyint_min", "30", "-sc_threshold", "0",
			"-an",
		}
	}
	return in, nil
}
