// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/camio/internal/camera"
	"github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/recording"
	"github.com/ManuGH/camio/internal/stream"
)

type recordingView struct {
	ID        int64      `json:"id"`
	CameraID  int64      `json:"cameraId"`
	Filename  string     `json:"filename"`
	Thumbnail *string    `json:"thumbnail"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
	Finished  bool       `json:"finished"`
}

func viewOf(rec *camera.Recording) *recordingView {
	if rec == nil {
		return nil
	}
	return &recordingView{
		ID:        rec.ID,
		CameraID:  rec.CameraID,
		Filename:  rec.Filename,
		Thumbnail: rec.Thumbnail,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		Finished:  rec.Finished,
	}
}

type statusResponse struct {
	Streams    []stream.Status    `json:"streams"`
	Recordings []recording.Status `json:"recordings"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Streams:    s.deps.Streams.Active(),
		Recordings: s.deps.Recordings.Active(),
	}
	if resp.Streams == nil {
		resp.Streams = []stream.Status{}
	}
	if resp.Recordings == nil {
		resp.Recordings = []recording.Status{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"streaming": s.deps.Streams.IsStreaming(id)})
}

func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	location, err := s.deps.Streams.Start(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ReadyTimeout)
		defer cancel()
		if err := s.deps.Streams.WaitReady(ctx, id); err != nil {
			logger := log.WithContext(r.Context(), s.logger)
			logger.Warn().Err(err).
				Int64(log.FieldCameraID, id).
				Str(log.FieldEvent, "stream.ready_wait_failed").
				Msg("stream did not become ready")
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"location": location})
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	found, err := s.deps.Streams.Stop(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"found": found})
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recording": s.deps.Recordings.IsRecording(id)})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Recordings.Start(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Recordings.Stop(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Found     bool           `json:"found"`
		Recording *recordingView `json:"recording,omitempty"`
	}{Found: res.Found, Recording: viewOf(res.Recording)})
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.deps.Store.GetRecording(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, r, http.StatusBadRequest, "INVALID_ID", "Invalid identifier", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
