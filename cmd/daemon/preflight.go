// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ManuGH/camio/internal/config"
	xglog "github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/persistence/sqlite"
)

// ErrDatabaseCorrupt is returned when the integrity check reports problems.
var ErrDatabaseCorrupt = errors.New("database integrity check failed")

// preflight fails fast on an unusable environment: the ffmpeg binary must
// resolve, storage roots must be writable and an existing database must pass
// a quick integrity check.
func preflight(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("preflight")

	bin, err := exec.LookPath(cfg.FFmpeg.Bin)
	if err != nil {
		return fmt.Errorf("ffmpeg binary %q: %w", cfg.FFmpeg.Bin, err)
	}
	logger.Debug().Str("event", "preflight.ffmpeg").Str("path", bin).Msg("ffmpeg resolved")

	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.DBPath), cfg.Stream.Root, cfg.Recording.Root} {
		// #nosec G301
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		probe, err := os.CreateTemp(dir, ".camio-probe-*")
		if err != nil {
			return fmt.Errorf("directory %s not writable: %w", dir, err)
		}
		_ = probe.Close()
		_ = os.Remove(probe.Name())
	}

	if cfg.VerifyDB {
		if _, err := os.Stat(cfg.DBPath); err == nil {
			problems, err := sqlite.VerifyIntegrity(ctx, cfg.DBPath, sqlite.IntegrityQuick)
			if err != nil {
				return fmt.Errorf("verify database: %w", err)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%w: %s", ErrDatabaseCorrupt, strings.Join(problems, "; "))
			}
			logger.Debug().Str("event", "preflight.db_ok").Str("path", cfg.DBPath).Msg("database integrity ok")
		}
	}
	return nil
}
