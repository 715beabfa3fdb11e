// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for camio.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys.
const (
	EnvDataDir          = "CAMIO_DATA_DIR"
	EnvDBPath           = "CAMIO_DB_PATH"
	EnvLogLevel         = "CAMIO_LOG_LEVEL"
	EnvFFmpegBin        = "CAMIO_FFMPEG_BIN"
	EnvThumbnailOffset  = "CAMIO_THUMBNAIL_OFFSET"
	EnvThumbnailTimeout = "CAMIO_THUMBNAIL_TIMEOUT"
	EnvStopGrace        = "CAMIO_STOP_GRACE"
	EnvStreamRoot       = "CAMIO_STREAM_ROOT"
	EnvStreamPublicBase = "CAMIO_STREAM_PUBLIC_BASE"
	EnvHLSSegmentSecs   = "CAMIO_HLS_SEGMENT_SECONDS"
	EnvHLSListSize      = "CAMIO_HLS_LIST_SIZE"
	EnvRecordingsRoot   = "CAMIO_RECORDINGS_ROOT"
	EnvListenAddr       = "CAMIO_LISTEN_ADDR"
	EnvAPIRateLimit     = "CAMIO_API_RATE_LIMIT"
	EnvVerifyDB         = "CAMIO_VERIFY_DB"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version  string
	DataDir  string
	DBPath   string
	LogLevel string
	// VerifyDB runs a quick integrity check of the database at startup.
	VerifyDB bool

	FFmpeg    FFmpegConfig
	Stream    StreamConfig
	Recording RecordingConfig
	API       APIConfig
}

type FFmpegConfig struct {
	Bin              string
	ThumbnailOffset  time.Duration
	ThumbnailTimeout time.Duration
	// StopGrace is how long shutdown waits after SIGTERM before SIGKILL.
	StopGrace time.Duration
}

type StreamConfig struct {
	Root           string
	PublicBase     string
	SegmentSeconds int
	ListSize       int
}

type RecordingConfig struct {
	Root string
}

type APIConfig struct {
	ListenAddr string
	// RateLimit is the number of requests per minute per client IP. 0 disables it.
	RateLimit int
}

// FileConfig is the YAML representation.
type FileConfig struct {
	DataDir  string `yaml:"dataDir"`
	DBPath   string `yaml:"dbPath"`
	LogLevel string `yaml:"logLevel"`
	VerifyDB *bool  `yaml:"verifyDB"`

	FFmpeg struct {
		Bin              string `yaml:"bin"`
		ThumbnailOffset  string `yaml:"thumbnailOffset"`
		ThumbnailTimeout string `yaml:"thumbnailTimeout"`
		StopGrace        string `yaml:"stopGrace"`
	} `yaml:"ffmpeg"`

	Stream struct {
		Root           string `yaml:"root"`
		PublicBase     string `yaml:"publicBase"`
		SegmentSeconds int    `yaml:"segmentSeconds"`
		ListSize       int    `yaml:"listSize"`
	} `yaml:"stream"`

	Recording struct {
		Root string `yaml:"root"`
	} `yaml:"recording"`

	API struct {
		ListenAddr string `yaml:"listenAddr"`
		RateLimit  *int   `yaml:"rateLimit"`
	} `yaml:"api"`
}

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load parses the file (strict), applies the environment, derives paths and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}
	setDefaults(&cfg)

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	deriveDataPaths(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *AppConfig) {
	cfg.DataDir = "/var/lib/camio"
	cfg.LogLevel = "info"
	cfg.VerifyDB = true
	cfg.FFmpeg = FFmpegConfig{
		Bin:              "ffmpeg",
		ThumbnailOffset:  time.Second,
		ThumbnailTimeout: 30 * time.Second,
		StopGrace:        10 * time.Second,
	}
	cfg.Stream = StreamConfig{
		PublicBase:     "/streams",
		SegmentSeconds: 2,
		ListSize:       6,
	}
	cfg.API = APIConfig{
		ListenAddr: ":8080",
		RateLimit:  120,
	}
}

// deriveDataPaths places unset storage paths under DataDir.
func deriveDataPaths(cfg *AppConfig) {
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "camio.sqlite")
	}
	if cfg.Stream.Root == "" {
		cfg.Stream.Root = filepath.Join(cfg.DataDir, "streams")
	}
	if cfg.Recording.Root == "" {
		cfg.Recording.Root = filepath.Join(cfg.DataDir, "recordings")
	}
}

// loadFile loads configuration from a YAML file. Unknown fields are fatal.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, field, v string) error {
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		*dst = d
		return nil
	}

	setString(&dst.DataDir, src.DataDir)
	setString(&dst.DBPath, src.DBPath)
	setString(&dst.LogLevel, src.LogLevel)
	if src.VerifyDB != nil {
		dst.VerifyDB = *src.VerifyDB
	}

	setString(&dst.FFmpeg.Bin, src.FFmpeg.Bin)
	if err := errors.Join(
		setDuration(&dst.FFmpeg.ThumbnailOffset, "ffmpeg.thumbnailOffset", src.FFmpeg.ThumbnailOffset),
		setDuration(&dst.FFmpeg.ThumbnailTimeout, "ffmpeg.thumbnailTimeout", src.FFmpeg.ThumbnailTimeout),
		setDuration(&dst.FFmpeg.StopGrace, "ffmpeg.stopGrace", src.FFmpeg.StopGrace),
	); err != nil {
		return err
	}

	setString(&dst.Stream.Root, src.Stream.Root)
	setString(&dst.Stream.PublicBase, src.Stream.PublicBase)
	setInt(&dst.Stream.SegmentSeconds, src.Stream.SegmentSeconds)
	setInt(&dst.Stream.ListSize, src.Stream.ListSize)

	setString(&dst.Recording.Root, src.Recording.Root)

	setString(&dst.API.ListenAddr, src.API.ListenAddr)
	if src.API.RateLimit != nil {
		dst.API.RateLimit = *src.API.RateLimit
	}
	return nil
}

// mergeEnvConfig applies environment overrides on top of the file values.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)
	cfg.DBPath = l.envString(EnvDBPath, cfg.DBPath)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.VerifyDB = l.envBool(EnvVerifyDB, cfg.VerifyDB)

	cfg.FFmpeg.Bin = l.envString(EnvFFmpegBin, cfg.FFmpeg.Bin)
	cfg.FFmpeg.ThumbnailOffset = l.envDuration(EnvThumbnailOffset, cfg.FFmpeg.ThumbnailOffset)
	cfg.FFmpeg.ThumbnailTimeout = l.envDuration(EnvThumbnailTimeout, cfg.FFmpeg.ThumbnailTimeout)
	cfg.FFmpeg.StopGrace = l.envDuration(EnvStopGrace, cfg.FFmpeg.StopGrace)

	cfg.Stream.Root = l.envString(EnvStreamRoot, cfg.Stream.Root)
	cfg.Stream.PublicBase = l.envString(EnvStreamPublicBase, cfg.Stream.PublicBase)
	cfg.Stream.SegmentSeconds = l.envInt(EnvHLSSegmentSecs, cfg.Stream.SegmentSeconds)
	cfg.Stream.ListSize = l.envInt(EnvHLSListSize, cfg.Stream.ListSize)

	cfg.Recording.Root = l.envString(EnvRecordingsRoot, cfg.Recording.Root)

	cfg.API.ListenAddr = l.envString(EnvListenAddr, cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt(EnvAPIRateLimit, cfg.API.RateLimit)
}
