// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewManager_RequiresHandler(t *testing.T) {
	_, err := NewManager(DefaultServerConfig(":0"), nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingHandler)
}

func TestServe_ShutdownRunsHooksInReverseOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	m, err := NewManager(DefaultServerConfig("127.0.0.1:0"), handler, zerolog.Nop())
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	m.RegisterShutdownHook("store", record("store"))
	m.RegisterShutdownHook("orchestrators", record("orchestrators"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"orchestrators", "store"}, order)

	require.ErrorIs(t, m.Serve(context.Background(), mustListen(t)), ErrAlreadyStarted)
}

func TestShutdown_CollectsHookErrors(t *testing.T) {
	m, err := NewManager(DefaultServerConfig("127.0.0.1:0"), http.NotFoundHandler(), zerolog.Nop())
	require.NoError(t, err)

	boom := errors.New("boom")
	m.RegisterShutdownHook("failing", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Serve(ctx, mustListen(t))
	require.ErrorIs(t, err, boom)
}

func TestShutdown_NotStartedIsNoop(t *testing.T) {
	m, err := NewManager(DefaultServerConfig(":0"), http.NotFoundHandler(), zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}
