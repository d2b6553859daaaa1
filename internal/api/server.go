// Package api exposes the agent's local HTTP control surface: health,
// status, statistics, on-demand processing, uploads and result queries.
// Mutating endpoints answer with the APIResponse envelope; read endpoints
// return their resource directly.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/invoiceworks/invoice-agent/internal/archive"
	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port             int
	Version          string
	IncomingDir      string
	OutputDir        string
	SupportedFormats []string
	MaxFileSize      int64
	Pipeline         Pipeline
	Store            *invoice.Store
	Archive          archive.Repository
	Logger           *slog.Logger
	StartTime        time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
