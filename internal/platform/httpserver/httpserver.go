// Package httpserver owns the listener lifecycle for the senderguard API.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Timeouts bounds each phase of a connection. WriteTimeout has to cover a
// full POST /blocklist/match run, so it tracks the blocklist store timeout
// rather than a fixed constant.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.ReadHeader <= 0 {
		t.ReadHeader = 5 * time.Second
	}
	if t.Read <= 0 {
		t.Read = 15 * time.Second
	}
	if t.Write <= 0 {
		t.Write = 30 * time.Second
	}
	if t.Idle <= 0 {
		t.Idle = 60 * time.Second
	}
	if t.Shutdown <= 0 {
		t.Shutdown = 10 * time.Second
	}
	return t
}

type Server struct {
	srv      *http.Server
	shutdown time.Duration
}

func New(addr string, handler http.Handler, timeouts Timeouts) *Server {
	timeouts = timeouts.withDefaults()
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
			ReadTimeout:       timeouts.Read,
			WriteTimeout:      timeouts.Write,
			IdleTimeout:       timeouts.Idle,
		},
		shutdown: timeouts.Shutdown,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
