// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs the HTTP server and the ordered shutdown of the daemon.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrMissingHandler is returned when no HTTP handler is provided.
	ErrMissingHandler = errors.New("HTTP handler is required")
	// ErrAlreadyStarted is returned by a second Run.
	ErrAlreadyStarted = errors.New("manager already started")
)

// ShutdownHook performs cleanup during graceful shutdown.
// Hooks run in reverse registration order.
type ShutdownHook func(ctx context.Context) error

// ServerConfig holds listener settings.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns timeouts suitable for the control API. WriteTimeout
// stays zero because recording stop blocks until finalization.
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// Manager serves the API until its context ends, then shuts everything down.
type Manager struct {
	cfg     ServerConfig
	handler http.Handler
	logger  zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	hooks    []namedHook
	started  bool
	stopping bool
}

// NewManager creates a Manager.
func NewManager(cfg ServerConfig, handler http.Handler, logger zerolog.Logger) (*Manager, error) {
	if handler == nil {
		return nil, ErrMissingHandler
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With().Str("component", "manager").Logger(),
	}, nil
}

// RegisterShutdownHook registers a cleanup function.
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}

// Run listens on the configured address and blocks until ctx is cancelled or the
// server fails. Shutdown runs in both cases.
func (m *Manager) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.cfg.ListenAddr, err)
	}
	return m.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyStarted
	}
	m.started = true
	m.server = &http.Server{
		Handler:           m.handler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
	}
	m.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		m.logger.Info().Str("event", "api.listening").Str("addr", ln.Addr().String()).Msg("API server listening")
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Str("event", "api.server.failed").Msg("API server failed")
			errCh <- fmt.Errorf("API server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		if shutdownErr := m.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str("event", "shutdown.signal").Msg("shutdown signal received")
		return m.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown stops the HTTP server and runs the hooks within ShutdownTimeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping || !m.started {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := m.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			m.logger.Error().Err(err).Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		m.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Str("event", "shutdown.complete").Msg("daemon stopped cleanly")
	return nil
}
