// Package supervisor owns process lifecycle: start the HTTP server, wait for
// SIGINT/SIGTERM, then drain the simulator, flush the log store and close
// the fan-out hub in the order spec §4.12 requires, via an errgroup so a
// server error and a shutdown signal race the same way.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"alibi/internal/hub"
	"alibi/internal/logstore"
)

// Simulator is the subset of *simulator.Simulator the supervisor drains on
// shutdown. Stop is a no-op (returns domain.ErrConflict, ignored here) when
// nothing is running.
type Simulator interface {
	Stop() (any, error)
}

// Supervisor runs the HTTP server and coordinates graceful shutdown of every
// background collaborator.
type Supervisor struct {
	Server        *http.Server
	Store         *logstore.Store
	Hub           *hub.Hub
	Simulator     Simulator
	Logger        *slog.Logger
	ShutdownGrace time.Duration
}

// Run starts the HTTP server and blocks until it exits or a termination
// signal arrives, then performs an orderly shutdown. It returns the first
// unexpected error encountered, or nil on a clean signal-triggered exit.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.ShutdownGrace == 0 {
		s.ShutdownGrace = 10 * time.Second
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.Logger.Info("http server listening", "addr", s.Server.Addr)
		if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		return s.shutdown()
	})

	return group.Wait()
}

// shutdown stops accepting new HTTP requests, drains the simulator, flushes
// every writer and closes the hub with a terminal message, in that order.
func (s *Supervisor) shutdown() error {
	s.Logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownGrace)
	defer cancel()
	if err := s.Server.Shutdown(shutdownCtx); err != nil {
		s.Logger.Error("http server shutdown error", "error", err)
	}

	if s.Simulator != nil {
		if _, err := s.Simulator.Stop(); err != nil {
			s.Logger.Debug("simulator was not running at shutdown", "error", err)
		}
	}

	if err := s.Store.Close(); err != nil {
		s.Logger.Error("log store close error", "error", err)
	}

	s.Hub.Shutdown()

	s.Logger.Info("shutdown complete")
	return nil
}
