package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRoutes configures the middleware chain and the single MCP route.
// Requests pass through body parsing and the payment gate before routing.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.correlationIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.maxBodySizeMiddleware(1 << 20))
	r.Use(s.jsonBodyMiddleware)
	r.Use(s.app.Gate.Middleware)

	r.Post("/", s.app.MCPHandler.ServeHTTP)

	return r
}
