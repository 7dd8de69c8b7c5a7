// Package server provides the local diagnostics HTTP server.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lumenplay/agent/internal/api"
	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/db"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/metrics"
	"github.com/lumenplay/agent/internal/middleware"
)

// Server is the local diagnostics HTTP server: health, device status, and
// Prometheus metrics. It binds to localhost by default; fleet tooling
// reaches it over the device's own tunnel.
type Server struct {
	config      *config.Config
	db          *db.DB
	deviceUUID  string
	playbackSrc api.PlaybackStatusSource
	syncSrc     api.SyncStatusSource
	metrics     *metrics.Metrics
	router      *gin.Engine
	server      *http.Server
}

// New creates a new diagnostics server instance
func New(
	cfg *config.Config,
	database *db.DB,
	deviceUUID string,
	playbackSrc api.PlaybackStatusSource,
	syncSrc api.SyncStatusSource,
	m *metrics.Metrics,
) *Server {
	return &Server{
		config:      cfg,
		db:          database,
		deviceUUID:  deviceUUID,
		playbackSrc: playbackSrc,
		syncSrc:     syncSrc,
		metrics:     m,
	}
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	apiGroup := s.router.Group("/api")
	api.SetupHealthRoutes(apiGroup, s.db)
	api.SetupStatusRoutes(apiGroup, s.deviceUUID, s.playbackSrc, s.syncSrc)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Start starts the HTTP server. Blocks until the server exits.
func (s *Server) Start() error {
	s.setupRouter()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting diagnostics server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	logger.Log.Info().Msg("Diagnostics server stopped")
	return nil
}
