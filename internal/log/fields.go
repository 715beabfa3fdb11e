// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID   = "request_id"
	FieldCameraID    = "camera_id"
	FieldCameraType  = "camera_type"
	FieldRecordingID = "recording_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldFunction  = "function"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"
	FieldExitClass = "exit_class"

	// Path / URL fields
	FieldPath     = "path"
	FieldLocation = "location"
)
