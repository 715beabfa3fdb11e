// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using maps (thread-safe).
type MemoryStore struct {
	mu         sync.RWMutex
	cameras    map[int64]Camera
	recordings map[int64]Recording
	nextID     int64
}

// NewMemoryStore creates an in-memory store seeded with the given cameras.
func NewMemoryStore(cameras ...Camera) *MemoryStore {
	s := &MemoryStore{
		cameras:    make(map[int64]Camera),
		recordings: make(map[int64]Recording),
	}
	for _, c := range cameras {
		s.cameras[c.ID] = c
	}
	return s
}

// PutCamera inserts or replaces a camera record.
func (s *MemoryStore) PutCamera(c Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras[c.ID] = c
}

func (s *MemoryStore) GetCamera(_ context.Context, id int64) (*Camera, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cameras[id]
	if !ok {
		return nil, ErrCameraNotFound
	}
	return &c, nil
}

func (s *MemoryStore) CreateRecording(_ context.Context, rec *Recording) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	clone := *rec
	clone.ID = s.nextID
	s.recordings[clone.ID] = clone
	return clone.ID, nil
}

func (s *MemoryStore) FinishRecording(_ context.Context, id int64, endedAt time.Time, thumbnail *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recordings[id]
	if !ok {
		return ErrRecordingNotFound
	}
	end := endedAt
	rec.EndedAt = &end
	rec.Finished = true
	if thumbnail != nil {
		thumb := *thumbnail
		rec.Thumbnail = &thumb
	} else {
		rec.Thumbnail = nil
	}
	s.recordings[id] = rec
	return nil
}

func (s *MemoryStore) DeleteRecording(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recordings, id)
	return nil
}

func (s *MemoryStore) GetRecording(_ context.Context, id int64) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recordings[id]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	return &rec, nil
}

// RecordingCount returns the number of stored recordings.
func (s *MemoryStore) RecordingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recordings)
}

func (s *MemoryStore) Close() error {
	return nil
}
