// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"strings"
	"sync"
)

// LineRing keeps the last N lines written to it. Safe for concurrent use.
type LineRing struct {
	mu    sync.RWMutex
	lines []string
	head  int
	count int
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write implements io.Writer. Input is split on newlines; empty lines are dropped.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		r.lines[r.head] = line
		r.head = (r.head + 1) % len(r.lines)
		if r.count < len(r.lines) {
			r.count++
		}
	}
	return len(p), nil
}

// LastN returns up to n of the most recent lines, oldest first.
func (r *LineRing) LastN(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	size := len(r.lines)
	for i := n; i > 0; i-- {
		out = append(out, r.lines[(r.head-i+size)%size])
	}
	return out
}
