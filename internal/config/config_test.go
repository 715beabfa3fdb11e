// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsDerivePaths(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvDataDir, dataDir)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, filepath.Join(dataDir, "camio.sqlite"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dataDir, "streams"), cfg.Stream.Root)
	assert.Equal(t, filepath.Join(dataDir, "recordings"), cfg.Recording.Root)
	assert.Equal(t, "/streams", cfg.Stream.PublicBase)
	assert.Equal(t, 2, cfg.Stream.SegmentSeconds)
	assert.Equal(t, 6, cfg.Stream.ListSize)
	assert.Equal(t, time.Second, cfg.FFmpeg.ThumbnailOffset)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Bin)
	assert.DirExists(t, cfg.Stream.Root)
	assert.DirExists(t, cfg.Recording.Root)
}

func TestLoad_Precedence(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
dataDir: `+dataDir+`
logLevel: debug
ffmpeg:
  bin: /usr/local/bin/ffmpeg
  stopGrace: 3s
stream:
  publicBase: /live
  listSize: 10
api:
  rateLimit: 0
`)
	t.Setenv(EnvHLSListSize, "4")
	t.Setenv(EnvListenAddr, "127.0.0.1:9090")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpeg.Bin)
	assert.Equal(t, 3*time.Second, cfg.FFmpeg.StopGrace)
	assert.Equal(t, "/live", cfg.Stream.PublicBase)
	assert.Equal(t, 4, cfg.Stream.ListSize, "env wins over file")
	assert.Equal(t, "127.0.0.1:9090", cfg.API.ListenAddr)
	assert.Equal(t, 0, cfg.API.RateLimit, "explicit zero in file disables the limit")
	assert.Contains(t, l.ConsumedEnvKeys, EnvHLSListSize)
}

func TestLoad_StrictUnknownField(t *testing.T) {
	path := writeConfig(t, "dataDir: /tmp\nstreamz:\n  root: /x\n")

	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())

	path := writeConfig(t, "ffmpeg:\n  stopGrace: later\n")
	_, err := NewLoader(path, "dev").Load()
	assert.ErrorContains(t, err, "ffmpeg.stopGrace")

	t.Setenv(EnvStreamPublicBase, "streams")
	t.Setenv(EnvLogLevel, "loud")
	_, err = NewLoader("", "dev").Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "Stream.PublicBase")
	assert.ErrorContains(t, err, "LogLevel")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camio.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path, "dev").Load()
	assert.ErrorContains(t, err, "only YAML supported")
}
