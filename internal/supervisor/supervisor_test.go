package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alibi/internal/hub"
	"alibi/internal/logstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type stubSimulator struct {
	stopped bool
	err     error
}

func (s *stubSimulator) Stop() (any, error) {
	s.stopped = true
	return nil, s.err
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRunShutsDownCleanlyOnContextCancel(t *testing.T) {
	store, err := logstore.Open(t.TempDir())
	require.NoError(t, err)

	h := hub.New()
	sim := &stubSimulator{}

	server := &http.Server{Addr: freeAddr(t)}

	sup := &Supervisor{
		Server:        server,
		Store:         store,
		Hub:           h,
		Simulator:     sim,
		Logger:        discardLogger(),
		ShutdownGrace: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	// Give the HTTP goroutine a moment to start listening before tearing down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	require.True(t, sim.stopped, "simulator should be drained during shutdown")

	// The store was closed by shutdown(); subscribing to the hub after
	// Shutdown() must still behave (subscribers map reset, not nil-panic).
	_, unsubscribe := h.Subscribe()
	unsubscribe()
}

func TestRunToleratesSimulatorNotRunning(t *testing.T) {
	store, err := logstore.Open(t.TempDir())
	require.NoError(t, err)

	h := hub.New()
	sim := &stubSimulator{err: errors.New("no simulation running")}

	server := &http.Server{Addr: freeAddr(t)}

	sup := &Supervisor{
		Server:        server,
		Store:         store,
		Hub:           h,
		Simulator:     sim,
		Logger:        discardLogger(),
		ShutdownGrace: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "a simulator-not-running error must not fail shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunPropagatesHTTPServerError(t *testing.T) {
	store, err := logstore.Open(t.TempDir())
	require.NoError(t, err)

	h := hub.New()
	sim := &stubSimulator{}

	// An address already in use by another listener makes ListenAndServe
	// fail immediately with a real error distinct from http.ErrServerClosed.
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	server := &http.Server{Addr: blocker.Addr().String()}

	sup := &Supervisor{
		Server:        server,
		Store:         store,
		Hub:           h,
		Simulator:     sim,
		Logger:        discardLogger(),
		ShutdownGrace: time.Second,
	}

	err = sup.Run(context.Background())
	require.Error(t, err)
}
