// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recording runs one MP4 recording process per camera and reconciles its
// exit with the persisted Recording.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/camio/internal/camera"
	"github.com/ManuGH/camio/internal/ffmpeg"
	"github.com/ManuGH/camio/internal/input"
	"github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const function = string(camera.FunctionRecord)

// finalizeTimeout bounds store writes and thumbnail extraction in the exit path.
const finalizeTimeout = time.Minute

// maxNameAttempts bounds the search for a free recording file name.
const maxNameAttempts = 1000

// Resolver produces the ffmpeg input for a camera.
type Resolver interface {
	Resolve(ctx context.Context, cam *camera.Camera, fn camera.Function) (input.Input, error)
}

// StreamStatus reports live-stream activity for the exclusivity check.
type StreamStatus interface {
	IsStreaming(cameraID int64) bool
}

// Thumbnailer extracts a preview image from a finished recording and returns its
// file name.
type Thumbnailer interface {
	Extract(ctx context.Context, videoPath string) (string, error)
}

// Config holds the recording output layout.
type Config struct {
	BinPath string
	Root    string
}

// Result is returned by a successful Start.
type Result struct {
	RecordingID int64  `json:"recordingId"`
	Filename    string `json:"filename"`
}

// StopResult is returned by Stop once the recording has been finalized.
type StopResult struct {
	Found     bool              `json:"found"`
	Recording *camera.Recording `json:"recording,omitempty"`
}

// Status describes an active recording.
type Status struct {
	CameraID    int64     `json:"cameraId"`
	RecordingID int64     `json:"recordingId"`
	Filename    string    `json:"filename"`
	StartedAt   time.Time `json:"startedAt"`
	PID         int       `json:"pid"`
}

type entry struct {
	ready     chan struct{} // closed when the start attempt settled
	startErr  error
	finalized chan struct{} // closed by the exit callback after persistence

	cameraID    int64
	recordingID int64
	filename    string
	path        string
	started     time.Time
	proc        ffmpeg.Process

	// outcome, valid once finalized is closed
	rec *camera.Recording
	err error
}

// Orchestrator owns the registry of recording processes.
type Orchestrator struct {
	cfg        Config
	cameras    camera.CameraStore
	recordings camera.RecordingStore
	inputs     Resolver
	streams    StreamStatus
	spawner    ffmpeg.Spawner
	thumbs     Thumbnailer
	logger     zerolog.Logger
	now        func() time.Time

	stops singleflight.Group

	mu      sync.Mutex
	entries map[int64]*entry
}

// Deps are the collaborators of the Orchestrator.
type Deps struct {
	Cameras     camera.CameraStore
	Recordings  camera.RecordingStore
	Inputs      Resolver
	Streams     StreamStatus
	Spawner     ffmpeg.Spawner
	Thumbnailer Thumbnailer
}

// NewOrchestrator creates a recording orchestrator.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if cfg.BinPath == "" {
		cfg.BinPath = "ffmpeg"
	}
	return &Orchestrator{
		cfg:        cfg,
		cameras:    deps.Cameras,
		recordings: deps.Recordings,
		inputs:     deps.Inputs,
		streams:    deps.Streams,
		spawner:    deps.Spawner,
		thumbs:     deps.Thumbnailer,
		logger:     log.WithComponent("recording"),
		now:        time.Now,
		entries:    make(map[int64]*entry),
	}
}

// Start begins recording a camera. It fails with ErrAlreadyRecording while another
// recording of the camera is active or starting.
func (o *Orchestrator) Start(ctx context.Context, cameraID int64) (Result, error) {
	o.mu.Lock()
	if _, busy := o.entries[cameraID]; busy {
		o.mu.Unlock()
		metrics.IncStartRejected(function, "already_active")
		return Result{}, ErrAlreadyRecording
	}
	e := &entry{cameraID: cameraID, ready: make(chan struct{}), finalized: make(chan struct{})}
	o.entries[cameraID] = e
	o.mu.Unlock()

	err := o.start(ctx, cameraID, e)

	o.mu.Lock()
	e.startErr = err
	if err != nil && o.entries[cameraID] == e {
		delete(o.entries, cameraID)
	}
	close(e.ready)
	metrics.SetActive(function, len(o.entries))
	o.mu.Unlock()

	if err != nil {
		return Result{}, err
	}
	return Result{RecordingID: e.recordingID, Filename: e.filename}, nil
}

func (o *Orchestrator) start(ctx context.Context, cameraID int64, e *entry) error {
	logger := log.WithContext(ctx, o.logger).With().Int64(log.FieldCameraID, cameraID).Logger()

	cam, err := o.cameras.GetCamera(ctx, cameraID)
	if err != nil {
		metrics.IncStartRejected(function, "not_found")
		return fmt.Errorf("load camera %d: %w", cameraID, err)
	}

	if input.RequiresExclusiveAccess(cam.Type) && o.streams != nil && o.streams.IsStreaming(cameraID) {
		metrics.IncStartRejected(function, "exclusivity")
		logger.Warn().Str(log.FieldEvent, "recording.exclusivity_rejected").Str(log.FieldCameraType, string(cam.Type)).Msg("recording rejected, device held by live stream")
		return &ExclusivityError{CameraID: cameraID, CameraType: cam.Type}
	}

	in, err := o.inputs.Resolve(ctx, cam, camera.FunctionRecord)
	if err != nil {
		metrics.IncStartRejected(function, "resolution")
		logger.Warn().Err(err).Str(log.FieldEvent, "recording.resolve_failed").Str(log.FieldCameraType, string(cam.Type)).Msg("input resolution failed")
		return err
	}

	// #nosec G301
	if err := os.MkdirAll(o.cfg.Root, 0o755); err != nil {
		return fmt.Errorf("create recordings root: %w", err)
	}

	startedAt := o.now()
	name, err := reserveOutput(o.cfg.Root, cameraID, startedAt)
	if err != nil {
		return fmt.Errorf("reserve recording file: %w", err)
	}
	e.filename = name
	e.path = filepath.Join(o.cfg.Root, name)
	e.started = startedAt

	recID, err := o.recordings.CreateRecording(ctx, &camera.Recording{
		CameraID:  cameraID,
		Filename:  e.filename,
		StartedAt: startedAt,
	})
	if err != nil {
		_ = os.Remove(e.path)
		return fmt.Errorf("create recording row: %w", err)
	}
	e.recordingID = recID

	argv := ffmpeg.BuildArgv(o.cfg.BinPath, in.Locator, in.PreInputArgs, in.CodecArgs, ffmpeg.RecordingOutputArgs(e.path))
	proc, err := o.spawner.Spawn(argv, func(st ffmpeg.ExitStatus) { o.onExit(cameraID, e, st) })
	if err != nil {
		metrics.IncStartRejected(function, "spawn")
		if delErr := o.recordings.DeleteRecording(context.WithoutCancel(ctx), recID); delErr != nil {
			logger.Error().Err(delErr).Int64(log.FieldRecordingID, recID).Msg("failed to roll back recording row")
		}
		_ = os.Remove(e.path)
		logger.Error().Err(err).Str(log.FieldEvent, "recording.spawn_failed").Msg("failed to spawn ffmpeg")
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	e.proc = proc

	logger.Info().
		Str(log.FieldEvent, "recording.started").
		Str(log.FieldCameraType, string(cam.Type)).
		Int64(log.FieldRecordingID, recID).
		Int(log.FieldPID, proc.Pid()).
		Str(log.FieldPath, e.path).
		Msg("recording started")
	return nil
}

func (o *Orchestrator) onExit(cameraID int64, e *entry, st ffmpeg.ExitStatus) {
	o.mu.Lock()
	if o.entries[cameraID] == e {
		delete(o.entries, cameraID)
	}
	metrics.SetActive(function, len(o.entries))
	o.mu.Unlock()

	defer close(e.finalized)

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	logger := o.logger.With().
		Int64(log.FieldCameraID, cameraID).
		Int64(log.FieldRecordingID, e.recordingID).
		Int(log.FieldExitCode, st.Code).
		Str(log.FieldExitClass, string(st.Class)).
		Logger()

	if st.Class.Graceful() && nonEmpty(e.path) {
		e.rec, e.err = o.finish(ctx, e)
		if e.err != nil {
			// An unfinished row must not outlive its process.
			metrics.IncRecordingFinalized("failed")
			delCtx, delCancel := context.WithTimeout(context.Background(), finalizeTimeout)
			defer delCancel()
			if err := o.recordings.DeleteRecording(delCtx, e.recordingID); err != nil {
				logger.Error().Err(err).Msg("failed to delete unfinalized recording row")
			}
			logger.Error().Err(e.err).Str(log.FieldEvent, "recording.finish_failed").Str(log.FieldPath, e.path).Msg("failed to finalize recording, row removed and file kept")
			return
		}
		metrics.IncRecordingFinalized("finished")
		logger.Info().Str(log.FieldEvent, "recording.finished").Str(log.FieldPath, e.path).Msg("recording finished")
		return
	}

	if err := o.recordings.DeleteRecording(ctx, e.recordingID); err != nil {
		logger.Error().Err(err).Msg("failed to delete discarded recording row")
	}
	if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str(log.FieldPath, e.path).Msg("failed to remove discarded recording file")
	}
	metrics.IncRecordingFinalized("discarded")
	e.err = &AbnormalExitError{CameraID: cameraID, Status: st}
	logger.Warn().Str(log.FieldEvent, "recording.discarded").Strs("stderr", st.Stderr).Msg("recording discarded")
}

func (o *Orchestrator) finish(ctx context.Context, e *entry) (*camera.Recording, error) {
	var thumbnail *string
	if o.thumbs != nil {
		if name, err := o.thumbs.Extract(ctx, e.path); err == nil {
			thumbnail = &name
		} else {
			o.logger.Warn().Err(err).Int64(log.FieldRecordingID, e.recordingID).Msg("thumbnail extraction failed, finishing without thumbnail")
		}
	} else {
		metrics.IncThumbnail("skipped")
	}

	endedAt := o.now()
	if err := o.recordings.FinishRecording(ctx, e.recordingID, endedAt, thumbnail); err != nil {
		o.logger.Warn().Err(err).Int64(log.FieldRecordingID, e.recordingID).Msg("finish recording failed, retrying once")
		// the thumbnail may have used up ctx
		retryCtx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()
		if err := o.recordings.FinishRecording(retryCtx, e.recordingID, endedAt, thumbnail); err != nil {
			return nil, fmt.Errorf("finish recording %d: %w", e.recordingID, err)
		}
	}
	return &camera.Recording{
		ID:        e.recordingID,
		CameraID:  e.cameraID,
		Filename:  e.filename,
		Thumbnail: thumbnail,
		StartedAt: e.started,
		EndedAt:   &endedAt,
		Finished:  true,
	}, nil
}

// reserveOutput claims a file name no earlier recording or thumbnail uses by
// creating an empty placeholder, which ffmpeg then overwrites. The placeholder
// also keeps a discarded run from racing a restart onto the same name.
func reserveOutput(root string, cameraID int64, startedAt time.Time) (string, error) {
	for seq := 0; seq < maxNameAttempts; seq++ {
		name := ffmpeg.RecordingFilename(cameraID, startedAt, seq)
		if _, err := os.Lstat(filepath.Join(root, ffmpeg.ThumbnailFilename(name))); err == nil {
			continue
		}
		// #nosec G302 G304
		f, err := os.OpenFile(filepath.Join(root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		_ = f.Close()
		return name, nil
	}
	return "", fmt.Errorf("no free file name for camera %d at %s", cameraID, startedAt.Format(time.RFC3339))
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Stop signals the recording of a camera and waits until it has been finalized.
// Concurrent stops of the same camera share one outcome. ctx only bounds the wait.
func (o *Orchestrator) Stop(ctx context.Context, cameraID int64) (StopResult, error) {
	ch := o.stops.DoChan(strconv.FormatInt(cameraID, 10), func() (any, error) {
		return o.stop(cameraID)
	})
	select {
	case res := <-ch:
		out, _ := res.Val.(StopResult)
		return out, res.Err
	case <-ctx.Done():
		return StopResult{}, ctx.Err()
	}
}

func (o *Orchestrator) stop(cameraID int64) (StopResult, error) {
	o.mu.Lock()
	e, ok := o.entries[cameraID]
	o.mu.Unlock()
	if !ok {
		return StopResult{Found: false}, nil
	}

	<-e.ready
	if e.startErr != nil {
		return StopResult{Found: false}, nil
	}

	o.logger.Info().
		Str(log.FieldEvent, "recording.stop").
		Int64(log.FieldCameraID, cameraID).
		Int64(log.FieldRecordingID, e.recordingID).
		Msg("stopping recording")
	if err := e.proc.Stop(); err != nil {
		o.logger.Warn().Err(err).Int64(log.FieldCameraID, cameraID).Msg("failed to signal recording process")
	}

	<-e.finalized
	return StopResult{Found: true, Recording: e.rec}, e.err
}

// IsRecording reports whether a recording is active or starting for the camera.
func (o *Orchestrator) IsRecording(cameraID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.entries[cameraID]
	return ok
}

// Active returns the running recordings ordered by camera.
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
		if e.proc == nil {
			continue
		}
		out = append(out, Status{
			CameraID:    id,
			RecordingID: e.recordingID,
			Filename:    e.filename,
			StartedAt:   e.started,
			PID:         e.proc.Pid(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}

// Shutdown terminates every recording, escalating to SIGKILL after grace, and
// waits for their finalization or ctx.
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

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Terminate(grace)
		}()
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
