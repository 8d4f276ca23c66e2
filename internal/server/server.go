package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drsullivan13/weather-server/internal/app"
	"github.com/drsullivan13/weather-server/internal/common"
)

// State is the listener lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateListening
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Server manages the HTTP listener and routes.
type Server struct {
	app      *app.App
	router   chi.Router
	server   *http.Server
	listener net.Listener
	state    atomic.Int32
	logger   *common.Logger
}

// New creates a new HTTP server with the given app.
func New(application *app.App) *Server {
	s := &Server{
		app:    application,
		logger: application.Logger,
	}

	s.router = s.setupRoutes()

	addr := net.JoinHostPort(application.Config.Server.Host, fmt.Sprint(application.Config.Server.Port))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Listen binds the configured address. A bind failure moves the server to
// StateFailed, which is terminal.
func (s *Server) Listen() error {
	if State(s.state.Load()) != StateStarting {
		return fmt.Errorf("listen called in state %s", State(s.state.Load()))
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.state.Store(int32(StateFailed))
		s.logger.Error().Str("address", s.server.Addr).Str("error", err.Error()).Msg("failed to bind HTTP listener")
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.listener = ln
	s.state.Store(int32(StateListening))

	port := s.app.Config.Server.Port
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	s.logger.Info().Str("address", ln.Addr().String()).Int("port", port).
		Msgf("MCP Streamable HTTP Server listening on port %d", port)
	return nil
}

// Serve accepts connections until Shutdown is called.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Start binds and serves.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// State returns the current listener state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address, or nil before Listen succeeds.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
