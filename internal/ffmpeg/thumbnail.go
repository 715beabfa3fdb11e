// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/metrics"
	"github.com/ManuGH/camio/internal/procgroup"
	"github.com/google/renameio/v2"
)

// ErrEmptyThumbnail is returned when ffmpeg produced no image data.
var ErrEmptyThumbnail = errors.New("ffmpeg: thumbnail output empty")

// Thumbnailer grabs a single JPEG frame from a finished recording.
type Thumbnailer struct {
	BinPath string
	Offset  time.Duration
	Timeout time.Duration
}

// NewThumbnailer returns a Thumbnailer with a 1 second offset and 30 second timeout.
func NewThumbnailer(binPath string) *Thumbnailer {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Thumbnailer{BinPath: binPath, Offset: time.Second, Timeout: 30 * time.Second}
}

// Extract writes <video base>.jpg next to videoPath and returns its file name.
func (t *Thumbnailer) Extract(ctx context.Context, videoPath string) (string, error) {
	name, err := t.extract(ctx, videoPath)
	if err != nil {
		metrics.IncThumbnail("error")
		return "", err
	}
	metrics.IncThumbnail("ok")
	return name, nil
}

func (t *Thumbnailer) extract(ctx context.Context, videoPath string) (string, error) {
	logger := log.WithComponentFromContext(ctx, "thumbnail")

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(t.Offset.Seconds(), 'f', -1, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, t.BinPath, args...) // #nosec G204
	procgroup.Prepare(cmd)
	cmd.Cancel = func() error { return procgroup.Signal(cmd, syscall.SIGKILL) }

	var stdout bytes.Buffer
	ring := NewLineRing(exitLogLines)
	cmd.Stdout = &stdout
	cmd.Stderr = ring

	if err := cmd.Run(); err != nil {
		logger.Warn().Err(err).Str(log.FieldPath, videoPath).Strs("stderr", ring.LastN(exitLogLines)).Msg("thumbnail extraction failed")
		return "", fmt.Errorf("ffmpeg: thumbnail: %w", err)
	}
	if stdout.Len() == 0 {
		return "", ErrEmptyThumbnail
	}

	name := ThumbnailFilename(filepath.Base(videoPath))
	target := filepath.Join(filepath.Dir(videoPath), name)

	pendingFile, err := renameio.NewPendingFile(target)
	if err != nil {
		return "", fmt.Errorf("create pending thumbnail: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending thumbnail")
		}
	}()

	if _, err := pendingFile.Write(stdout.Bytes()); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically replace thumbnail: %w", err)
	}

	logger.Debug().Str(log.FieldPath, target).Int("bytes", stdout.Len()).Msg("thumbnail written")
	return name, nil
}
