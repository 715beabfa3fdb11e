// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package input turns camera records into ffmpeg inputs.
package input

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/camio/internal/camera"
)

// Input is everything ffmpeg needs to open a camera.
type Input struct {
	Locator      string
	PreInputArgs []string
	CodecArgs    []string
}

// Resolver produces the Input for one camera type.
type Resolver interface {
	Resolve(ctx context.Context, cam *camera.Camera, fn camera.Function) (Input, error)
}

// ErrorKind classifies resolution failures.
type ErrorKind string

const (
	KindUnsupported    ErrorKind = "unsupported_type"
	KindMissingConfig  ErrorKind = "missing_config"
	KindDeviceNotFound ErrorKind = "device_not_found"
	KindNegotiation    ErrorKind = "negotiation_failed"
	KindInvalidURI     ErrorKind = "invalid_uri"
)

// ErrDeviceNotFound is matched by errors.Is on a device_not_found ResolutionError.
var ErrDeviceNotFound = errors.New("device not found")

// ResolutionError reports why no input could be produced. No subprocess is
// started and nothing is persisted when it is returned.
type ResolutionError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("input resolution failed (%s)", e.Kind)
	}
	return fmt.Sprintf("input resolution failed (%s): %s", e.Kind, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func resolutionError(kind ErrorKind, err error, format string, args ...any) *ResolutionError {
	return &ResolutionError{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Capabilities dispatches to the resolver registered for a camera type.
type Capabilities struct {
	resolvers map[camera.Type]Resolver
}

// NewCapabilities builds the dispatch table for the three supported camera types.
func NewCapabilities(negotiator Negotiator) *Capabilities {
	return &Capabilities{resolvers: map[camera.Type]Resolver{
		camera.TypeNetwork: &NetworkResolver{Negotiator: negotiator},
		camera.TypeDirect:  &DirectResolver{},
		camera.TypeRelayed: &RelayedResolver{},
	}}
}

// Register replaces the resolver for t.
func (c *Capabilities) Register(t camera.Type, r Resolver) {
	c.resolvers[t] = r
}

// For returns the resolver for t.
func (c *Capabilities) For(t camera.Type) (Resolver, error) {
	r, ok := c.resolvers[t]
	if !ok {
		return nil, resolutionError(KindUnsupported, nil, "unsupported camera type %q", t)
	}
	return r, nil
}

// Resolve looks up the resolver for cam's type and runs it.
func (c *Capabilities) Resolve(ctx context.Context, cam *camera.Camera, fn camera.Function) (Input, error) {
	r, err := c.For(cam.Type)
	if err != nil {
		return Input{}, err
	}
	return r.Resolve(ctx, cam, fn)
}

// RequiresExclusiveAccess reports whether a camera type opens a local device that
// cannot be shared between two ffmpeg processes.
func RequiresExclusiveAccess(t camera.Type) bool {
	return t == camera.TypeDirect
}
