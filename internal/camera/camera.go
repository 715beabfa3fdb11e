// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package camera holds the persisted camera and recording model together with the
// storage contracts the orchestrators consume.
package camera

import (
	"context"
	"errors"
	"time"
)

// Type is the declared input type of a camera.
type Type string

const (
	// TypeNetwork is a network camera negotiated through the device-management protocol.
	TypeNetwork Type = "onvif"
	// TypeDirect is a host-attached capture device opened through its kernel video interface.
	TypeDirect Type = "usb"
	// TypeRelayed is a capture device re-exposed by a streaming relay.
	TypeRelayed Type = "usb_relay"
)

// Valid reports whether t is one of the known camera types.
func (t Type) Valid() bool {
	switch t {
	case TypeNetwork, TypeDirect, TypeRelayed:
		return true
	}
	return false
}

// Function is one of the two long-running outputs a camera can drive.
type Function string

const (
	FunctionStream Function = "stream"
	FunctionRecord Function = "record"
)

var (
	ErrCameraNotFound    = errors.New("camera not found")
	ErrRecordingNotFound = errors.New("recording not found")
)

// Camera is read-only to the orchestration core. Only the attributes of its Type
// are expected to be populated.
type Camera struct {
	ID   int64
	Name string
	Type Type

	// network-managed and relayed-capture
	Host     string
	Port     int
	Username string
	Password string

	// ManagementURL overrides the device-management endpoint derived from Host and Port.
	ManagementURL string

	// direct-capture
	DevicePath string

	// relayed-capture
	RelayPath string
}

// Recording is the persisted metadata of one recording session.
type Recording struct {
	ID        int64
	CameraID  int64
	Filename  string
	Thumbnail *string
	StartedAt time.Time
	EndedAt   *time.Time
	Finished  bool
}

// CameraStore looks up camera records.
type CameraStore interface {
	GetCamera(ctx context.Context, id int64) (*Camera, error)
}

// RecordingStore persists recording metadata. Identifiers are generated by the store.
type RecordingStore interface {
	CreateRecording(ctx context.Context, rec *Recording) (int64, error)
	FinishRecording(ctx context.Context, id int64, endedAt time.Time, thumbnail *string) error
	DeleteRecording(ctx context.Context, id int64) error
	GetRecording(ctx context.Context, id int64) (*Recording, error)
}

// Store is the full persistence surface used by the daemon.
type Store interface {
	CameraStore
	RecordingStore
	Close() error
}
