// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ManuGH/camio/internal/camera"
	"github.com/ManuGH/camio/internal/input"
	"github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/recording"
	"github.com/ManuGH/camio/internal/stream"
)

const (
	// HeaderRequestID carries the request correlation id in both directions.
	HeaderRequestID = "X-Request-ID"

	problemContentType = "application/problem+json"
	problemTypeBase    = "/problems/"
)

// writeProblem renders an RFC 7807 problem document.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, title, detail string) {
	reqID := log.RequestIDFromContext(r.Context())

	body := map[string]any{
		"type":   problemTypeBase + strings.ToLower(strings.ReplaceAll(code, "_", "-")),
		"title":  title,
		"status": status,
		"code":   code,
	}
	if reqID != "" {
		body["requestId"] = reqID
		w.Header().Set(HeaderRequestID, reqID)
	}
	if detail != "" {
		body["detail"] = detail
	}
	if r.URL != nil {
		body["instance"] = r.URL.Path
	}

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps orchestration errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		resErr  *input.ResolutionError
		exclErr *recording.ExclusivityError
	)

	switch {
	case errors.Is(err, camera.ErrCameraNotFound):
		writeProblem(w, r, http.StatusNotFound, "CAMERA_NOT_FOUND", "Camera not found", err.Error())
	case errors.Is(err, camera.ErrRecordingNotFound):
		writeProblem(w, r, http.StatusNotFound, "RECORDING_NOT_FOUND", "Recording not found", err.Error())
	case errors.As(err, &resErr):
		status := http.StatusUnprocessableEntity
		if resErr.Kind == input.KindNegotiation {
			status = http.StatusBadGateway
		}
		writeProblem(w, r, status, strings.ToUpper(string(resErr.Kind)), "Input resolution failed", resErr.Error())
	case errors.As(err, &exclErr):
		writeProblem(w, r, http.StatusConflict, "EXCLUSIVE_ACCESS", "Device is held by another process", exclErr.Error())
	case errors.Is(err, recording.ErrAlreadyRecording):
		writeProblem(w, r, http.StatusConflict, "ALREADY_RECORDING", "Camera is already recording", "")
	case errors.Is(err, stream.ErrNotStreaming):
		writeProblem(w, r, http.StatusConflict, "NOT_STREAMING", "Camera is not streaming", "")
	case errors.Is(err, recording.ErrDiscarded):
		writeProblem(w, r, http.StatusInternalServerError, "RECORDING_DISCARDED", "Recording was discarded", err.Error())
	case errors.Is(err, stream.ErrSpawnFailed), errors.Is(err, recording.ErrSpawnFailed):
		writeProblem(w, r, http.StatusInternalServerError, "SPAWN_FAILED", "Failed to start ffmpeg", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Operation timed out", "")
	case errors.Is(err, context.Canceled):
		// client went away
		writeProblem(w, r, 499, "CANCELED", "Request canceled", "")
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.internal_error").
			Str("path", r.URL.Path).
			Msg("unhandled error")
		writeProblem(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
