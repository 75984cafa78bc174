// Package api exposes the dashboard over HTTP: aggregated summaries,
// filtered per-paper views, comparative chart series, and the record-flag
// endpoints. It is purely read-and-render over the loaded datasets; the
// only write path is the flag store.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cmml-outcomes-server/internal/domain"
	"github.com/cmml-outcomes-server/internal/feedback"
	"github.com/cmml-outcomes-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	cfg       *domain.ServerConfig
	dashboard *service.Dashboard
	flags     feedback.Store // nil when no backend is configured
	logger    *logrus.Logger
	router    *gin.Engine
	server    *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, dashboard *service.Dashboard, flags feedback.Store, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		cfg:       &cfg.Server,
		dashboard: dashboard,
		flags:     flags,
		logger:    logger,
		router:    router,
	}

	s.setupRoutes()
	return s
}

// Router exposes the configured gin engine, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	if s.cfg.StaticDir != "" {
		s.router.Static("/dashboard", s.cfg.StaticDir)
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/refresh", s.handleRefresh)
		v1.GET("/metadata", s.handleMetadata)
		v1.GET("/summary", s.handleSummary)
		v1.GET("/outcomes", s.handleOutcomes)
		v1.GET("/aggregates/:metric", s.handleAggregates)
		v1.GET("/charts/:metric", s.handleChart)
		v1.GET("/records", s.handleRecords)

		v1.POST("/flags", s.handleSaveFlag)
		v1.GET("/flags", s.handleListFlags)
		v1.POST("/flags/:id/resolve", s.handleResolveFlag)
		v1.GET("/flags/export", s.handleExportFlags)
	}
}

// corsMiddleware adds CORS headers for the browser dashboard
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
