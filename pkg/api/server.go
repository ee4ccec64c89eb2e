// Package api exposes the engine over HTTP: a health endpoint and the
// WebSocket message transport.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/insightloop/glean/pkg/config"
	"github.com/insightloop/glean/pkg/events"
	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/orchestrator"
	"github.com/insightloop/glean/pkg/version"
)

// MessageHandler processes one inbound user message. Satisfied by
// *orchestrator.Orchestrator.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID int64, req *models.AnalyzeRequest)
}

// RegistryStats reports adapter cache state for health output.
type RegistryStats interface {
	Size() int
}

// Server is the HTTP/WebSocket front of the engine.
type Server struct {
	cfg       config.ServerConfig
	hub       *events.Hub
	handler   MessageHandler
	registry  RegistryStats
	providers *config.ProviderRegistry

	httpServer *http.Server
}

// NewServer wires routes and returns an unstarted server.
func NewServer(
	cfg config.ServerConfig,
	hub *events.Hub,
	handler MessageHandler,
	registryStats RegistryStats,
	providers *config.ProviderRegistry,
) *Server {
	s := &Server{
		cfg:       cfg,
		hub:       hub,
		handler:   handler,
		registry:  registryStats,
		providers: providers,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"app":            version.AppName,
		"version":        version.Version,
		"providers":      s.providers.ConfiguredNames(),
		"cached_sources": s.registry.Size(),
	})
}

var _ MessageHandler = (*orchestrator.Orchestrator)(nil)
