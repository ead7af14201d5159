// Package httpserver runs an http.Server in the background.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultAddr            = ":9090"
	defaultShutdownTimeout = 3 * time.Second
)

// Server wraps http.Server with a bound listener.
type Server struct {
	server          *http.Server
	listener        net.Listener
	errCh           chan error
	shutdownTimeout time.Duration
}

// Options configure a Server. Zero values fall back to defaults.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// New binds opt.Addr and starts serving handler.
func New(handler http.Handler, opt Options) (*Server, error) {
	addr := opt.Addr
	if addr == "" {
		addr = defaultAddr
	}

	shutdownTimeout := opt.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &Server{
		server: &http.Server{
			Handler:           handler,
			ReadTimeout:       defaultReadTimeout,
			ReadHeaderTimeout: defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
		},
		listener:        ln,
		errCh:           make(chan error, 1),
		shutdownTimeout: shutdownTimeout,
	}

	go srv.start()

	return srv, nil
}

func (s *Server) start() {
	err := s.server.Serve(s.listener)
	if !errors.Is(err, http.ErrServerClosed) {
		s.errCh <- err
	}

	close(s.errCh)
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Notify delivers a serve error, if any, and is closed once serving stops.
func (s *Server) Notify() <-chan error {
	return s.errCh
}

// Shutdown stops the server gracefully within the shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
