// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// PlaylistName is the HLS playlist written into every stream directory.
	PlaylistName = "index.m3u8"
	// SegmentPattern names the rolling HLS segments.
	SegmentPattern = "segment_%03d.ts"

	recordingTimeLayout = "20060102-150405"
)

// globalArgs precede every input.
var globalArgs = []string{"-hide_banner", "-loglevel", "warning", "-nostdin", "-y"}

// HLSOptions configures the rolling live playlist.
type HLSOptions struct {
	SegmentSeconds int
	ListSize       int
}

// DefaultHLSOptions returns 2 second segments and a window of 6.
func DefaultHLSOptions() HLSOptions {
	return HLSOptions{SegmentSeconds: 2, ListSize: 6}
}

// BuildArgv assembles the full command line: binary, global flags, pre-input flags,
// the input locator, codec flags and destination flags.
func BuildArgv(bin, locator string, preInput, codec, output []string) []string {
	argv := make([]string, 0, 1+len(globalArgs)+len(preInput)+2+len(codec)+len(output))
	argv = append(argv, bin)
	argv = append(argv, globalArgs...)
	argv = append(argv, preInput...)
	argv = append(argv, "-i", locator)
	argv = append(argv, codec...)
	argv = append(argv, output...)
	return argv
}

// HLSOutputArgs writes a rolling playlist and its segments into dir.
func HLSOutputArgs(dir string, opts HLSOptions) []string {
	if opts.SegmentSeconds <= 0 || opts.ListSize <= 0 {
		def := DefaultHLSOptions()
		if opts.SegmentSeconds <= 0 {
			opts.SegmentSeconds = def.SegmentSeconds
		}
		if opts.ListSize <= 0 {
			opts.ListSize = def.ListSize
		}
	}
	return []string{
		"-f", "hls",
		"-hls_time", strconv.Itoa(opts.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(opts.ListSize),
		"-hls_flags", "delete_segments",
		"-hls_segment_filename", filepath.Join(dir, SegmentPattern),
		filepath.Join(dir, PlaylistName),
	}
}

// RecordingOutputArgs writes a single fragmented MP4. Fragmentation keeps the file
// playable when the process dies before writing the trailer.
func RecordingOutputArgs(path string) []string {
	return []string{
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		path,
	}
}

// RecordingFilename returns camera<id>_<YYYYMMDD-HHMMSS>.mp4 for t. A positive seq
// disambiguates recordings started within the same second: camera<id>_<ts>-<seq>.mp4.
func RecordingFilename(cameraID int64, t time.Time, seq int) string {
	if seq > 0 {
		return fmt.Sprintf("camera%d_%s-%d.mp4", cameraID, t.Format(recordingTimeLayout), seq)
	}
	return fmt.Sprintf("camera%d_%s.mp4", cameraID, t.Format(recordingTimeLayout))
}

// ThumbnailFilename returns the .jpg sibling of a recording file name.
func ThumbnailFilename(recording string) string {
	return strings.TrimSuffix(recording, filepath.Ext(recording)) + ".jpg"
}
