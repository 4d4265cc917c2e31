// Package rest is the HTTP surface over the settlement core: payment
// initiation, gateway callbacks, wallet payments, ticket operations, and a
// couple of read endpoints.
package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soukmarket/settlement/internal/config"
)

type Server struct {
	http   *http.Server
	logger *slog.Logger
}

func NewServer(cfg config.ServerConfig, handler *Handler, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(Recovery(logger), RequestLogger(logger))
	handler.RegisterRoutes(engine)

	return &Server{
		http: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping")
	return s.http.Shutdown(ctx)
}
