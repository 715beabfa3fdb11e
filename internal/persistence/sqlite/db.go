// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Options tunes the connection pool.
type Options struct {
	BusyTimeout time.Duration
	// MaxOpenConns bounds the pool. Writers serialize on the database lock anyway.
	MaxOpenConns int
}

func DefaultOptions() Options {
	return Options{BusyTimeout: 5 * time.Second, MaxOpenConns: 4}
}

func dsn(path string, params url.Values) string {
	return "file:" + path + "?" + params.Encode()
}

// Open returns a pool with WAL, busy timeout and foreign keys applied to every connection.
func Open(path string, opts Options) (*sql.DB, error) {
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(ON)")

	db, err := sql.Open("sqlite", dsn(path, params))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return db, nil
}

// IntegrityMode selects the integrity pragma.
type IntegrityMode string

const (
	IntegrityQuick IntegrityMode = "quick"
	IntegrityFull  IntegrityMode = "full"
)

// VerifyIntegrity opens path read-only and runs quick_check or integrity_check.
// Problems reported by SQLite are returned as strings; a healthy database yields nil.
func VerifyIntegrity(ctx context.Context, path string, mode IntegrityMode) ([]string, error) {
	params := url.Values{}
	params.Set("mode", "ro")
	params.Add("_pragma", "busy_timeout(2000)")
	db, err := sql.Open("sqlite", dsn(path, params))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s for verification: %w", path, err)
	}
	defer db.Close()

	pragma := "PRAGMA quick_check"
	if mode == IntegrityFull {
		pragma = "PRAGMA integrity_check"
	}
	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: scan integrity row: %w", err)
		}
		problems = append(problems, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: integrity rows: %w", err)
	}

	switch {
	case len(problems) == 1 && strings.EqualFold(problems[0], "ok"):
		return nil, nil
	case len(problems) == 0:
		return []string{"integrity check returned no rows"}, nil
	}
	return problems, nil
}
