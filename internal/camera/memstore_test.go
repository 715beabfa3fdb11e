// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecordingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Camera{ID: 7, Type: TypeDirect, DevicePath: "/dev/video0"})

	cam, err := s.GetCamera(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, TypeDirect, cam.Type)

	_, err = s.GetCamera(ctx, 8)
	assert.ErrorIs(t, err, ErrCameraNotFound)

	id, err := s.CreateRecording(ctx, &Recording{CameraID: 7, Filename: "a.mp4", StartedAt: time.Now()})
	require.NoError(t, err)

	thumb := "a.jpg"
	end := time.Now()
	require.NoError(t, s.FinishRecording(ctx, id, end, &thumb))

	rec, err := s.GetRecording(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Finished)
	require.NotNil(t, rec.EndedAt)
	require.NotNil(t, rec.Thumbnail)
	assert.Equal(t, "a.jpg", *rec.Thumbnail)

	require.NoError(t, s.DeleteRecording(ctx, id))
	_, err = s.GetRecording(ctx, id)
	assert.ErrorIs(t, err, ErrRecordingNotFound)
	assert.ErrorIs(t, s.FinishRecording(ctx, id, end, nil), ErrRecordingNotFound)
}

func TestType_Valid(t *testing.T) {
	assert.True(t, TypeNetwork.Valid())
	assert.True(t, TypeDirect.Valid())
	assert.True(t, TypeRelayed.Valid())
	assert.False(t, Type("webcam").Valid())
}
