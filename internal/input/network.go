// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package input

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/ManuGH/camio/internal/camera"
)

const deviceServicePath = "/onvif/device_service"

// NetworkResolver negotiates an RTSP URI with the camera and embeds its credentials.
type NetworkResolver struct {
	Negotiator Negotiator
}

func (r *NetworkResolver) Resolve(ctx context.Context, cam *camera.Camera, fn camera.Function) (Input, error) {
	endpoint, err := managementEndpoint(cam)
	if err != nil {
		return Input{}, err
	}

	negotiator := r.Negotiator
	if negotiator == nil {
		negotiator = Unavailable
	}
	raw, err := negotiator.NegotiateStreamURI(ctx, ConnectionParams{
		Endpoint: endpoint,
		Username: cam.Username,
		Password: cam.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCouldNotConnect), errors.Is(err, ErrNoStreamProfile):
			return Input{}, resolutionError(KindNegotiation, err, "%s", err.Error())
		default:
			return Input{}, resolutionError(KindNegotiation, err, "stream URI negotiation failed: %v", err)
		}
	}

	locator, err := embedCredentials(raw, cam.Username, cam.Password)
	if err != nil {
		return Input{}, err
	}

	in := Input{
		Locator:      locator,
		PreInputArgs: []string{"-rtsp_transport", "tcp"},
	}
	// The camera already emits H.264 with a sane GOP, so both functions copy the
	// video and leave the camera's encoder to do the work. Live playback needs
	// AAC audio for HLS players; recordings drop audio.
	if fn == camera.FunctionRecord {
		in.CodecArgs = []string{"-c:v", "copy", "-an"}
	} else {
		in.CodecArgs = []string{"-c:v", "copy", "-c:a", "aac"}
	}
	return in, nil
}

// managementEndpoint prefers the explicit override and otherwise derives the
// device service URL from host and port.
func managementEndpoint(cam *camera.Camera) (string, error) {
	if cam.ManagementURL != "" {
		return cam.ManagementURL, nil
	}
	if cam.Host == "" {
		return "", resolutionError(KindMissingConfig, nil, "camera %d has no host", cam.ID)
	}
	host := cam.Host
	if cam.Port > 0 {
		host = net.JoinHostPort(cam.Host, strconv.Itoa(cam.Port))
	}
	u := url.URL{Scheme: "http", Host: host, Path: deviceServicePath}
	return u.String(), nil
}

// embedCredentials injects percent-encoded user info while preserving host, port,
// path and query of the negotiated URI.
func embedCredentials(raw, username, password string) (string, error) {
	if raw == "" {
		return "", resolutionError(KindInvalidURI, nil, "camera returned an empty stream URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", resolutionError(KindInvalidURI, err, "malformed stream URI: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", resolutionError(KindInvalidURI, nil, "malformed stream URI %q", raw)
	}
	switch {
	case username != "" && password != "":
		u.User = url.UserPassword(username, password)
	case username != "":
		u.User = url.User(username)
	}
	return u.String(), nil
}

