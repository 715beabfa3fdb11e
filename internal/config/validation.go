// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/camio/internal/validate"
)

// Validate checks the effective configuration. Storage roots are created when missing.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("DataDir", cfg.DataDir, false)
	v.Directory("Stream.Root", cfg.Stream.Root, false)
	v.Directory("Recording.Root", cfg.Recording.Root, false)
	v.NotEmpty("DBPath", cfg.DBPath)
	v.OneOf("LogLevel", cfg.LogLevel, []string{"trace", "debug", "info", "warn", "error"})

	v.NotEmpty("FFmpeg.Bin", cfg.FFmpeg.Bin)
	v.DurationRange("FFmpeg.ThumbnailOffset", cfg.FFmpeg.ThumbnailOffset, 0, time.Hour)
	v.DurationRange("FFmpeg.ThumbnailTimeout", cfg.FFmpeg.ThumbnailTimeout, time.Second, 10*time.Minute)
	v.DurationRange("FFmpeg.StopGrace", cfg.FFmpeg.StopGrace, 100*time.Millisecond, 5*time.Minute)

	v.URLPath("Stream.PublicBase", cfg.Stream.PublicBase)
	v.Range("Stream.SegmentSeconds", cfg.Stream.SegmentSeconds, 1, 60)
	v.Range("Stream.ListSize", cfg.Stream.ListSize, 1, 100)

	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	v.Range("API.RateLimit", cfg.API.RateLimit, 0, 100000)

	return v.Err()
}
