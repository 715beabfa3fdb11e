// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/camio/internal/api"
	"github.com/ManuGH/camio/internal/config"
	"github.com/ManuGH/camio/internal/daemon"
	"github.com/ManuGH/camio/internal/ffmpeg"
	"github.com/ManuGH/camio/internal/health"
	"github.com/ManuGH/camio/internal/input"
	xglog "github.com/ManuGH/camio/internal/log"
	"github.com/ManuGH/camio/internal/persistence/sqlite"
	"github.com/ManuGH/camio/internal/recording"
	"github.com/ManuGH/camio/internal/stream"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// safe defaults until config is loaded
	xglog.Configure(xglog.Config{Level: "info", Service: "camio", Version: version})
	logger := xglog.WithComponent("daemon")

	cfg, err := config.NewLoader(*configPath, version).Load()
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "camio", Version: cfg.Version})
	logger = xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := preflight(ctx, cfg); err != nil {
		logger.Fatal().Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.API.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Str("ffmpeg", cfg.FFmpeg.Bin).
		Msg("starting camio")

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon failed")
	}
	logger.Info().Msg("server exiting")
}

func run(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("daemon")

	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	// No device-management client is linked in; network-managed cameras fail
	// resolution with a negotiation error until one is registered.
	inputs := input.NewCapabilities(input.Unavailable)

	streams := stream.NewOrchestrator(stream.Config{
		BinPath:    cfg.FFmpeg.Bin,
		Root:       cfg.Stream.Root,
		PublicBase: cfg.Stream.PublicBase,
		HLS: ffmpeg.HLSOptions{
			SegmentSeconds: cfg.Stream.SegmentSeconds,
			ListSize:       cfg.Stream.ListSize,
		},
	}, store, inputs, ffmpeg.NewSupervisor("stream"))

	thumbnailer := ffmpeg.NewThumbnailer(cfg.FFmpeg.Bin)
	thumbnailer.Offset = cfg.FFmpeg.ThumbnailOffset
	thumbnailer.Timeout = cfg.FFmpeg.ThumbnailTimeout

	recordings := recording.NewOrchestrator(recording.Config{
		BinPath: cfg.FFmpeg.Bin,
		Root:    cfg.Recording.Root,
	}, recording.Deps{
		Cameras:     store,
		Recordings:  store,
		Inputs:      inputs,
		Streams:     streams,
		Spawner:     ffmpeg.NewSupervisor("record"),
		Thumbnailer: thumbnailer,
	})

	readiness := health.NewManager(cfg.Version)
	readiness.RegisterChecker(health.CheckFunc{CheckName: "database", Fn: store.DB.PingContext})
	readiness.RegisterChecker(health.NewDirChecker("stream_root", cfg.Stream.Root))
	readiness.RegisterChecker(health.NewDirChecker("recording_root", cfg.Recording.Root))

	srv := api.New(api.Config{
		StreamRoot: cfg.Stream.Root,
		PublicBase: cfg.Stream.PublicBase,
		RateLimit:  cfg.API.RateLimit,
	}, api.Deps{Streams: streams, Recordings: recordings, Store: store, Readiness: readiness})

	serverCfg := daemon.DefaultServerConfig(cfg.API.ListenAddr)
	// recordings finalize (thumbnail included) inside the shutdown window
	serverCfg.ShutdownTimeout = 2*cfg.FFmpeg.StopGrace + cfg.FFmpeg.ThumbnailTimeout
	mgr, err := daemon.NewManager(serverCfg, srv.Handler(), logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	// LIFO: orchestrators stop before the store closes
	mgr.RegisterShutdownHook("store", func(context.Context) error { return store.Close() })
	mgr.RegisterShutdownHook("streams", func(ctx context.Context) error {
		return streams.Shutdown(ctx, cfg.FFmpeg.StopGrace)
	})
	mgr.RegisterShutdownHook("recordings", func(ctx context.Context) error {
		return recordings.Shutdown(ctx, cfg.FFmpeg.StopGrace)
	})

	return mgr.Run(ctx)
}
