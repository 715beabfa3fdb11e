// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package input

import (
	"context"
	"errors"
)

var (
	// ErrCouldNotConnect means the device-management endpoint did not answer.
	ErrCouldNotConnect = errors.New("could not connect to camera")
	// ErrNoStreamProfile means the device offered no usable media profile.
	ErrNoStreamProfile = errors.New("no usable stream profile")
)

// ConnectionParams addresses a network camera's device-management service.
type ConnectionParams struct {
	Endpoint string
	Username string
	Password string
}

// Negotiator obtains a raw stream URI from a network camera.
type Negotiator interface {
	NegotiateStreamURI(ctx context.Context, params ConnectionParams) (string, error)
}

// NegotiatorFunc adapts a function to Negotiator.
type NegotiatorFunc func(ctx context.Context, params ConnectionParams) (string, error)

func (f NegotiatorFunc) NegotiateStreamURI(ctx context.Context, params ConnectionParams) (string, error) {
	return f(ctx, params)
}

// Unavailable is used when no device-management client is configured; every
// negotiation fails with ErrCouldNotConnect.
var Unavailable Negotiator = NegotiatorFunc(func(context.Context, ConnectionParams) (string, error) {
	return "", ErrCouldNotConnect
})
