package api

import (
	"context"
	"fmt"
	"net/http"

	"dockhand/internal/config"
	"dockhand/internal/logger"
)

// Server wraps the HTTP server with the configured timeouts. The write
// timeout comes from its own config knob; it is never derived from
// per-container grace periods.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// NewServer builds a server over the router.
func NewServer(cfg config.ServerConfig, handler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: log,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe blocks serving requests until Shutdown or a fatal error.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening on http://%s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
