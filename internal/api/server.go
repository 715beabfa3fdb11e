// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the orchestration operations over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/camio/internal/camera"
	"github.com/ManuGH/camio/internal/health"
	"github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/recording"
	"github.com/ManuGH/camio/internal/stream"
)

// StreamService is the live-stream surface bound by the adapter.
type StreamService interface {
	Start(ctx context.Context, cameraID int64) (string, error)
	Stop(ctx context.Context, cameraID int64) (bool, error)
	IsStreaming(cameraID int64) bool
	WaitReady(ctx context.Context, cameraID int64) error
	Active() []stream.Status
}

// RecordingService is the recording surface bound by the adapter.
type RecordingService interface {
	Start(ctx context.Context, cameraID int64) (recording.Result, error)
	Stop(ctx context.Context, cameraID int64) (recording.StopResult, error)
	IsRecording(cameraID int64) bool
	Active() []recording.Status
}

// RecordingLookup reads persisted recordings.
type RecordingLookup interface {
	GetRecording(ctx context.Context, id int64) (*camera.Recording, error)
}

// Config controls routing and limits.
type Config struct {
	// StreamRoot is served read-only under PublicBase.
	StreamRoot string
	PublicBase string
	// RateLimit is the per-IP request budget per minute for /api. Zero disables it.
	RateLimit int
	// ReadyTimeout bounds stream start with ?wait=true.
	ReadyTimeout time.Duration
}

// Deps are the services behind the routes.
type Deps struct {
	Streams    StreamService
	Recordings RecordingService
	Store      RecordingLookup
	// Readiness serves /readyz when set.
	Readiness *health.Manager
}

// Server binds the orchestrators to HTTP routes.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New creates a Server.
func New(cfg Config, deps Deps) *Server {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 20 * time.Second
	}
	cfg.PublicBase = "/" + strings.Trim(cfg.PublicBase, "/")
	return &Server{cfg: cfg, deps: deps, logger: log.WithComponent("api")}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(metricsMiddleware)
	r.Use(accessLog)

	r.Get("/healthz", s.handleHealth)
	if s.deps.Readiness != nil {
		r.Get("/readyz", s.deps.Readiness.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit))
		}
		r.Get("/status", s.handleStatus)
		r.Get("/recordings/{id}", s.handleGetRecording)

		r.Route("/cameras/{id}", func(r chi.Router) {
			r.Get("/stream", s.handleStreamStatus)
			r.Post("/stream/start", s.handleStreamStart)
			r.Post("/stream/stop", s.handleStreamStop)
			r.Get("/recording", s.handleRecordingStatus)
			r.Post("/recording/start", s.handleRecordingStart)
			r.Post("/recording/stop", s.handleRecordingStop)
		})
	})

	if s.cfg.StreamRoot != "" {
		r.Handle(s.cfg.PublicBase+"/*", http.StripPrefix(s.cfg.PublicBase, hlsFileServer(s.cfg.StreamRoot)))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "NOT_FOUND", "Not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", "")
	})
	return r
}

// hlsFileServer serves playlists and segments. Directory listings are refused.
func hlsFileServer(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeProblem(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", "")
			return
		}
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			writeProblem(w, r, http.StatusForbidden, "FORBIDDEN", "Directory listing is not allowed", "")
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ".m3u8"):
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Header().Set("Cache-Control", "no-cache")
		case strings.HasSuffix(r.URL.Path, ".ts"):
			w.Header().Set("Content-Type", "video/mp2t")
		}
		fs.ServeHTTP(w, r)
	})
}
