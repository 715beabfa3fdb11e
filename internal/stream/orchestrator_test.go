// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/camio/internal/camera"
	"github.com/ManuGH/camio/internal/input"
	"github.com/ManuGH/camio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	camNetwork int64 = 1
	camDirect  int64 = 2
	camRelayed int64 = 3
	camMissing int64 = 4
)

type fixture struct {
	orch    *Orchestrator
	spawner *testutil.FakeSpawner
	root    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	device := filepath.Join(t.TempDir(), "video0")
	require.NoError(t, os.WriteFile(device, nil, 0o600))

	store := camera.NewMemoryStore(
		camera.Camera{ID: camNetwork, Type: camera.TypeNetwork, Host: "cam", Port: 80, Username: "u", Password: "p"},
		camera.Camera{ID: camDirect, Type: camera.TypeDirect, DevicePath: device},
		camera.Camera{ID: camRelayed, Type: camera.TypeRelayed, Host: "relay", Port: 8554},
		camera.Camera{ID: camMissing, Type: camera.TypeDirect, DevicePath: filepath.Join(t.TempDir(), "video9")},
	)
	negotiator := input.NegotiatorFunc(func(context.Context, input.ConnectionParams) (string, error) {
		return "rtsp://cam/stream1", nil
	})

	root := filepath.Join(t.TempDir(), "streams")
	spawner := testutil.NewFakeSpawner()
	orch := NewOrchestrator(Config{Root: root}, store, input.NewCapabilities(negotiator), spawner)
	return &fixture{orch: orch, spawner: spawner, root: root}
}

func waitGone(t *testing.T, path string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "%s still exists", path)
}

func TestStart_DoubleStartSpawnsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, id := range []int64{camNetwork, camDirect, camRelayed} {
		f := newFixture(t)
		ctx := context.Background()

		loc1, err := f.orch.Start(ctx, id)
		require.NoError(t, err)
		loc2, err := f.orch.Start(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, loc1, loc2)
		assert.Equal(t, f.orch.Location(id), loc1)
		assert.Equal(t, 1, f.spawner.Spawns(), "camera %d", id)
		assert.True(t, f.orch.IsStreaming(id))
		assert.DirExists(t, f.orch.Dir(id))
		assert.Equal(t, filepath.Join(f.orch.Dir(id), "index.m3u8"), f.spawner.Last().Output())

		_, err = f.orch.Stop(ctx, id)
		require.NoError(t, err)
		<-f.spawner.Last().Done()
	}
}

func TestStart_ConcurrentStartsShareOutcome(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)

	var wg sync.WaitGroup
	locations := make([]string, 16)
	for i := range locations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := f.orch.Start(context.Background(), camRelayed)
			assert.NoError(t, err)
			locations[i] = loc
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.spawner.Spawns())
	for _, loc := range locations {
		assert.Equal(t, "/streams/3/index.m3u8", loc)
	}

	_, _ = f.orch.Stop(context.Background(), camRelayed)
	<-f.spawner.Last().Done()
}

func TestStop_NotRunning(t *testing.T) {
	f := newFixture(t)

	found, err := f.orch.Stop(context.Background(), camRelayed)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, f.spawner.Spawns())
	assert.NoDirExists(t, f.orch.Dir(camRelayed))
}

func TestStop_DeregistersImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	f.spawner.ExitOnStop = false
	ctx := context.Background()

	_, err := f.orch.Start(ctx, camNetwork)
	require.NoError(t, err)
	proc := f.spawner.Last()

	found, err := f.orch.Stop(ctx, camNetwork)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, proc.StopCalls())
	assert.False(t, f.orch.IsStreaming(camNetwork))

	// The directory lives until the process is gone.
	assert.DirExists(t, f.orch.Dir(camNetwork))
	proc.Exit(255)
	waitGone(t, f.orch.Dir(camNetwork))
}

func TestExit_AbnormalCleansUp(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Start(context.Background(), camDirect)
	require.NoError(t, err)

	f.spawner.Last().Exit(1)
	assert.False(t, f.orch.IsStreaming(camDirect))
	assert.NoDirExists(t, f.orch.Dir(camDirect))
	assert.Empty(t, f.orch.Active())
}

func TestExit_StaleCallbackKeepsNewRun(t *testing.T) {
	f := newFixture(t)
	f.spawner.ExitOnStop = false
	ctx := context.Background()

	_, err := f.orch.Start(ctx, camRelayed)
	require.NoError(t, err)
	old := f.spawner.Last()

	_, err = f.orch.Stop(ctx, camRelayed)
	require.NoError(t, err)
	_, err = f.orch.Start(ctx, camRelayed)
	require.NoError(t, err)
	require.Equal(t, 2, f.spawner.Spawns())

	old.Exit(255)
	assert.True(t, f.orch.IsStreaming(camRelayed))
	assert.DirExists(t, f.orch.Dir(camRelayed))

	f.spawner.Last().Exit(255)
	assert.NoDirExists(t, f.orch.Dir(camRelayed))
}

func TestStart_MissingDevice(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Start(context.Background(), camMissing)
	require.Error(t, err)
	assert.ErrorIs(t, err, input.ErrDeviceNotFound)
	assert.Contains(t, err.Error(), "device not found")
	assert.Equal(t, 0, f.spawner.Spawns())
	assert.NoDirExists(t, f.orch.Dir(camMissing))
	assert.False(t, f.orch.IsStreaming(camMissing))
}

func TestStart_UnknownCamera(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Start(context.Background(), 99)
	assert.ErrorIs(t, err, camera.ErrCameraNotFound)
	assert.False(t, f.orch.IsStreaming(99))
}

func TestStart_SpawnFailureRemovesDir(t *testing.T) {
	f := newFixture(t)
	f.spawner.SpawnErr = errors.New("exec: ffmpeg: not found")

	_, err := f.orch.Start(context.Background(), camRelayed)
	require.ErrorIs(t, err, ErrSpawnFailed)
	assert.NoDirExists(t, f.orch.Dir(camRelayed))
	assert.False(t, f.orch.IsStreaming(camRelayed))

	// A later start is not blocked by the failed attempt.
	f.spawner.SpawnErr = nil
	_, err = f.orch.Start(context.Background(), camRelayed)
	require.NoError(t, err)
	f.spawner.Last().Exit(0)
}

func TestStart_WipesPreviousOutput(t *testing.T) {
	f := newFixture(t)
	stale := filepath.Join(f.orch.Dir(camRelayed), "segment_000.ts")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	_, err := f.orch.Start(context.Background(), camRelayed)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	f.spawner.Last().Exit(0)
}

func TestActiveAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []int64{camRelayed, camNetwork} {
		_, err := f.orch.Start(ctx, id)
		require.NoError(t, err)
	}

	active := f.orch.Active()
	require.Len(t, active, 2)
	assert.Equal(t, camNetwork, active[0].CameraID)
	assert.Equal(t, camRelayed, active[1].CameraID)
	assert.Equal(t, "/streams/3/index.m3u8", active[1].Location)
	assert.False(t, active[0].StartedAt.IsZero())

	require.NoError(t, f.orch.Shutdown(ctx, time.Second))
	assert.Empty(t, f.orch.Active())
	assert.False(t, f.orch.IsStreaming(camNetwork))
}

func TestWaitReady(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.ErrorIs(t, f.orch.WaitReady(ctx, camRelayed), ErrNotStreaming)

	_, err := f.orch.Start(ctx, camRelayed)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(f.orch.Dir(camRelayed), "index.m3u8"), []byte("#EXTM3U\n"), 0o600)
	}()
	require.NoError(t, f.orch.WaitReady(ctx, camRelayed))

	f.spawner.Last().Exit(0)
}

func TestWaitReady_StreamEnds(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.orch.Start(ctx, camRelayed)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		f.spawner.Last().Exit(1)
	}()
	assert.ErrorIs(t, f.orch.WaitReady(ctx, camRelayed), ErrNotStreaming)
}
