// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/camio/internal/ffmpeg"
	"github.com/ManuGH/camio/internal/log"
	"github.com/fsnotify/fsnotify"
)

// WaitReady blocks until the playlist of a running stream exists and is non-empty.
func (o *Orchestrator) WaitReady(ctx context.Context, cameraID int64) error {
	o.mu.Lock()
	e, ok := o.entries[cameraID]
	o.mu.Unlock()
	if !ok {
		return ErrNotStreaming
	}
	if _, err := o.await(ctx, e); err != nil {
		return err
	}
	return waitForFile(ctx, filepath.Join(o.Dir(cameraID), ffmpeg.PlaylistName), func() bool {
		return o.IsStreaming(cameraID)
	})
}

func playlistReady(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// waitForFile watches the parent directory of path until the file is written.
// alive is consulted on directory removal so an ended stream stops the wait.
func waitForFile(ctx context.Context, path string, alive func() bool) error {
	if playlistReady(path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		if !alive() {
			return ErrNotStreaming
		}
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	// The file may have appeared between the first check and Add.
	if playlistReady(path) {
		return nil
	}

	target := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			switch {
			case event.Name == dir && event.Has(fsnotify.Remove):
				return ErrNotStreaming
			case filepath.Base(event.Name) == target && (event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)):
				if playlistReady(path) {
					return nil
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			log.FromContext(ctx).Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}
