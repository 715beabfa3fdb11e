// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/camio/internal/camera"
)

// schemaVersion tracks the bootstrap schema below. Real migrations are owned by the
// administration tooling; the daemon only guarantees the tables it reads exist.
const schemaVersion = 1

// Store implements camera.Store on top of SQLite.
type Store struct {
	DB *sql.DB
}

var _ camera.Store = (*Store)(nil)

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := Open(dbPath, DefaultOptions())
	if err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("camera store: schema bootstrap failed: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS cameras (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		host TEXT NOT NULL DEFAULT '',
		port INTEGER NOT NULL DEFAULT 0,
		username TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		management_url TEXT NOT NULL DEFAULT '',
		device_path TEXT NOT NULL DEFAULT '',
		relay_path TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS recordings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		camera_id INTEGER NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		thumbnail TEXT,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		finished BOOLEAN NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_camera ON recordings(camera_id);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertCamera adds a camera row and returns its generated identifier.
func (s *Store) InsertCamera(ctx context.Context, c camera.Camera) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
	INSERT INTO cameras (name, type, host, port, username, password, management_url, device_path, relay_path)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, string(c.Type), c.Host, c.Port, c.Username, c.Password, c.ManagementURL, c.DevicePath, c.RelayPath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert camera: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetCamera(ctx context.Context, id int64) (*camera.Camera, error) {
	query := `SELECT id, name, type, host, port, username, password, management_url, device_path, relay_path FROM cameras WHERE id = ?`
	var c camera.Camera
	var typ string
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &typ, &c.Host, &c.Port, &c.Username, &c.Password, &c.ManagementURL, &c.DevicePath, &c.RelayPath,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, camera.ErrCameraNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get camera %d: %w", id, err)
	}
	c.Type = camera.Type(typ)
	return &c, nil
}

func (s *Store) CreateRecording(ctx context.Context, rec *camera.Recording) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
	INSERT INTO recordings (camera_id, filename, thumbnail, started_at, ended_at, finished)
	VALUES (?, ?, NULL, ?, NULL, 0)`,
		rec.CameraID, rec.Filename, rec.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("create recording: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) FinishRecording(ctx context.Context, id int64, endedAt time.Time, thumbnail *string) error {
	var thumb sql.NullString
	if thumbnail != nil {
		thumb = sql.NullString{String: *thumbnail, Valid: true}
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE recordings SET finished = 1, ended_at = ?, thumbnail = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano), thumb, id,
	)
	if err != nil {
		return fmt.Errorf("finish recording %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return camera.ErrRecordingNotFound
	}
	return nil
}

func (s *Store) DeleteRecording(ctx context.Context, id int64) error {
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete recording %d: %w", id, err)
	}
	return nil
}

func (s *Store) GetRecording(ctx context.Context, id int64) (*camera.Recording, error) {
	query := `SELECT id, camera_id, filename, thumbnail, started_at, ended_at, finished FROM recordings WHERE id = ?`
	var (
		rec      camera.Recording
		thumb    sql.NullString
		started  string
		ended    sql.NullString
		finished bool
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.CameraID, &rec.Filename, &thumb, &started, &ended, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, camera.ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %d: %w", id, err)
	}
	rec.Finished = finished
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if thumb.Valid {
		t := thumb.String
		rec.Thumbnail = &t
	}
	if ended.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, ended.String); err == nil {
			rec.EndedAt = &ts
		}
	}
	return &rec, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}
