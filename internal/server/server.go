// Package server exposes the advisor over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"protein-advisor/internal/common/logger"
)

var now = time.Now

type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

func New(address string, cfg RouterConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              address,
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
