// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream runs one live HLS ffmpeg process per camera.
package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/camio/internal/camera"
	"github.com/ManuGH/camio/internal/ffmpeg"
	"github.com/ManuGH/camio/internal/input"
	"github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrNotStreaming is returned when an operation needs a running stream.
	ErrNotStreaming = errors.New("camera is not streaming")
	// ErrSpawnFailed wraps subprocess start failures.
	ErrSpawnFailed = errors.New("stream: spawn failed")
)

const function = string(camera.FunctionStream)

// Resolver produces the ffmpeg input for a camera.
type Resolver interface {
	Resolve(ctx context.Context, cam *camera.Camera, fn camera.Function) (input.Input, error)
}

// Config holds the stream output layout.
type Config struct {
	BinPath string
	// Root is the directory holding one sub-directory per streaming camera.
	Root string
	// PublicBase prefixes the playlist location handed to clients.
	PublicBase string
	HLS        ffmpeg.HLSOptions
}

// Status describes a registered stream.
type Status struct {
	CameraID  int64     `json:"cameraId"`
	StartedAt time.Time `json:"startedAt"`
	Location  string    `json:"location"`
	PID       int       `json:"pid"`
}

type entry struct {
	ready chan struct{} // closed when the start attempt settled

	// set before ready is closed
	err      error
	location string
	proc     ffmpeg.Process
	started  time.Time
}

// Orchestrator owns the registry of live-stream processes.
type Orchestrator struct {
	cfg     Config
	cameras camera.CameraStore
	inputs  Resolver
	spawner ffmpeg.Spawner
	logger  zerolog.Logger

	mu      sync.Mutex
	entries map[int64]*entry
}

// NewOrchestrator creates a stream orchestrator.
func NewOrchestrator(cfg Config, cameras camera.CameraStore, inputs Resolver, spawner ffmpeg.Spawner) *Orchestrator {
	if cfg.BinPath == "" {
		cfg.BinPath = "ffmpeg"
	}
	if cfg.PublicBase == "" {
		cfg.PublicBase = "/streams"
	}
	return &Orchestrator{
		cfg:     cfg,
		cameras: cameras,
		inputs:  inputs,
		spawner: spawner,
		logger:  log.WithComponent("stream"),
		entries: make(map[int64]*entry),
	}
}

// Dir returns the output directory of a camera.
func (o *Orchestrator) Dir(cameraID int64) string {
	return filepath.Join(o.cfg.Root, strconv.FormatInt(cameraID, 10))
}

// Location returns the public playlist locator of a camera.
func (o *Orchestrator) Location(cameraID int64) string {
	return strings.TrimRight(o.cfg.PublicBase, "/") + "/" + strconv.FormatInt(cameraID, 10) + "/" + ffmpeg.PlaylistName
}

// Start launches the live stream of a camera and returns its playlist locator.
// Starting a running camera returns the same locator; a start racing another
// in-flight start waits for it and shares its outcome.
func (o *Orchestrator) Start(ctx context.Context, cameraID int64) (string, error) {
	o.mu.Lock()
	if e, ok := o.entries[cameraID]; ok {
		o.mu.Unlock()
		return o.await(ctx, e)
	}
	e := &entry{ready: make(chan struct{})}
	o.entries[cameraID] = e
	o.mu.Unlock()

	location, proc, err := o.start(ctx, cameraID, e)

	o.mu.Lock()
	e.location, e.proc, e.err = location, proc, err
	if err != nil && o.entries[cameraID] == e {
		delete(o.entries, cameraID)
	}
	close(e.ready)
	metrics.SetActive(function, len(o.entries))
	o.mu.Unlock()

	return location, err
}

func (o *Orchestrator) await(ctx context.Context, e *entry) (string, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if e.err != nil {
		return "", e.err
	}
	return e.location, nil
}

func (o *Orchestrator) start(ctx context.Context, cameraID int64, e *entry) (string, ffmpeg.Process, error) {
	logger := log.WithContext(ctx, o.logger).With().Int64(log.FieldCameraID, cameraID).Logger()

	cam, err := o.cameras.GetCamera(ctx, cameraID)
	if err != nil {
		metrics.IncStartRejected(function, "not_found")
		return "", nil, fmt.Errorf("load camera %d: %w", cameraID, err)
	}

	in, err := o.inputs.Resolve(ctx, cam, camera.FunctionStream)
	if err != nil {
		metrics.IncStartRejected(function, "resolution")
		logger.Warn().Err(err).Str(log.FieldEvent, "stream.resolve_failed").Str(log.FieldCameraType, string(cam.Type)).Msg("input resolution failed")
		return "", nil, err
	}

	dir := o.Dir(cameraID)
	if err := o.prepareDir(dir); err != nil {
		return "", nil, err
	}

	argv := ffmpeg.BuildArgv(o.cfg.BinPath, in.Locator, in.PreInputArgs, in.CodecArgs, ffmpeg.HLSOutputArgs(dir, o.cfg.HLS))
	proc, err := o.spawner.Spawn(argv, func(st ffmpeg.ExitStatus) { o.onExit(cameraID, e, dir, st) })
	if err != nil {
		metrics.IncStartRejected(function, "spawn")
		o.removeDir(cameraID, dir, e)
		logger.Error().Err(err).Str(log.FieldEvent, "stream.spawn_failed").Msg("failed to spawn ffmpeg")
		return "", nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	e.started = time.Now()
	location := o.Location(cameraID)
	logger.Info().
		Str(log.FieldEvent, "stream.started").
		Str(log.FieldCameraType, string(cam.Type)).
		Int(log.FieldPID, proc.Pid()).
		Str(log.FieldLocation, location).
		Msg("stream started")
	return location, proc, nil
}

// prepareDir wipes and recreates the output directory. It holds the registry lock
// so that a late exit callback of a previous run cannot remove the fresh directory.
func (o *Orchestrator) prepareDir(dir string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("wipe stream dir: %w", err)
	}
	// #nosec G301 -- served by the HTTP adapter
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stream dir: %w", err)
	}
	return nil
}

// removeDir deletes dir unless another run of the same camera is registered.
func (o *Orchestrator) removeDir(cameraID int64, dir string, self *entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, busy := o.entries[cameraID]; busy && cur != self {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		o.logger.Warn().Err(err).Str(log.FieldPath, dir).Msg("failed to remove stream dir")
	}
}

func (o *Orchestrator) onExit(cameraID int64, e *entry, dir string, st ffmpeg.ExitStatus) {
	o.mu.Lock()
	if o.entries[cameraID] == e {
		delete(o.entries, cameraID)
	}
	metrics.SetActive(function, len(o.entries))
	o.mu.Unlock()

	o.removeDir(cameraID, dir, e)

	o.logger.Info().
		Str(log.FieldEvent, "stream.ended").
		Int64(log.FieldCameraID, cameraID).
		Int(log.FieldExitCode, st.Code).
		Str(log.FieldExitClass, string(st.Class)).
		Msg("stream ended")
}

// Stop signals the stream of a camera and deregisters it at once. It reports
// whether a stream was running.
func (o *Orchestrator) Stop(ctx context.Context, cameraID int64) (bool, error) {
	o.mu.Lock()
	e, ok := o.entries[cameraID]
	o.mu.Unlock()
	if !ok {
		return false, nil
	}

	// Settle an in-flight start first; there is nothing to signal before that.
	if _, err := o.await(ctx, e); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}

	o.mu.Lock()
	if o.entries[cameraID] != e {
		o.mu.Unlock()
		return false, nil
	}
	delete(o.entries, cameraID)
	metrics.SetActive(function, len(o.entries))
	o.mu.Unlock()

	logger := log.WithContext(ctx, o.logger)
	logger.Info().
		Str(log.FieldEvent, "stream.stop").
		Int64(log.FieldCameraID, cameraID).
		Int(log.FieldPID, e.proc.Pid()).
		Msg("stopping stream")
	if err := e.proc.Stop(); err != nil {
		return true, fmt.Errorf("signal stream process: %w", err)
	}
	return true, nil
}

// IsStreaming reports whether a stream is running or starting for the camera.
func (o *Orchestrator) IsStreaming(cameraID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.entries[cameraID]
	return ok
}

// Active returns the running streams ordered by camera.
func (o *Orchestrator) Active() []Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Status, 0, len(o.entries))
	for id, e := range o.entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		out = append(out, Status{CameraID: id, StartedAt: e.started, Location: e.location, PID: e.proc.Pid()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}

// Shutdown terminates every running stream, escalating to SIGKILL after grace.
// It returns when all processes have exited or ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context, grace time.Duration) error {
	o.mu.Lock()
	procs := make([]ffmpeg.Process, 0, len(o.entries))
	for _, e := range o.entries {
		select {
		case <-e.ready:
			if e.proc != nil {
				procs = append(procs, e.proc)
			}
		default:
		}
	}
	o.mu.Unlock()

	return terminateAll(ctx, procs, grace)
}

func terminateAll(ctx context.Context, procs []ffmpeg.Process, grace time.Duration) error {
	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p ffmpeg.Process) {
			defer wg.Done()
			p.Terminate(grace)
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
