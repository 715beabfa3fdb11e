// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health aggregates readiness checks for the daemon's dependencies.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ManuGH/camio/internal/log"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadinessResponse is the body served by ServeReady.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one readiness probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version string

	mu       sync.RWMutex
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

func (m *Manager) RegisterChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Ready runs every checker. Any unhealthy result makes the daemon not ready;
// degraded results are reported but keep it ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if len(checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult, len(checkers))
	for _, c := range checkers {
		res := c.Check(ctx)
		resp.Checks[c.Name()] = res
		switch res.Status {
		case StatusUnhealthy:
			resp.Ready = false
			resp.Status = StatusUnhealthy
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

// ServeReady writes the readiness response, 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "readiness")
		logger.Error().Err(err).
			Str(log.FieldEvent, "readiness.encode_error").
			Msg("failed to encode readiness response")
	}
}

// CheckFunc adapts a function returning an error into a Checker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string { return c.CheckName }

func (c CheckFunc) Check(ctx context.Context) CheckResult {
	if err := c.Fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// DirChecker verifies that an output directory exists and accepts new files.
type DirChecker struct {
	name string
	path string
}

func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "not a directory", Message: c.path}
	}
	f, err := os.CreateTemp(c.path, ".camio-ready-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("not writable: %v", err), Message: c.path}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return CheckResult{Status: StatusHealthy}
}
