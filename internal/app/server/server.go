package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rentum/rentum/internal/app/config"
	"github.com/rentum/rentum/internal/app/handlers"
	"github.com/rentum/rentum/internal/app/middleware"
	appservices "github.com/rentum/rentum/internal/app/services"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/internal/infrastructure/metrics"
	"github.com/rentum/rentum/pkg/logger"
)

type Server struct {
	config   *config.Config
	logger   *logger.Logger
	router   *gin.Engine
	server   *http.Server
	services *appservices.ServiceManager
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	db, err := database.New(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Development databases are migrated on boot; elsewhere cmd/migrate owns the schema
	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	sm, err := appservices.NewServiceManager(cfg, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithServices(cfg, log, sm), nil
}

// NewWithServices builds the router around an existing service manager
func NewWithServices(cfg *config.Config, log *logger.Logger, sm *appservices.ServiceManager) *Server {
	// Configure Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(handlers.RequestIDMiddleware())
	router.Use(corsMiddleware(cfg))
	router.Use(loggingMiddleware(log))

	server := &Server{
		config:   cfg,
		logger:   log,
		router:   router,
		services: sm,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.Extraction.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	if closeErr := s.services.Close(); closeErr != nil {
		s.logger.Error("Error closing services", "error", closeErr)
	}

	return err
}

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	if s.services.Registry != nil {
		s.router.GET("/metrics", gin.WrapH(metrics.Handler(s.services.Registry)))
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.IdentityMiddleware(s.services.UserService))
	{
		handlers.NewUserHandler(s.services.UserService, s.logger).RegisterRoutes(v1)
		handlers.NewScanHandler(s.services.ScanService, s.logger).RegisterRoutes(v1)
		handlers.NewReviewHandler(s.services.ReviewService, s.logger).RegisterRoutes(v1)
		handlers.NewProfileHandler(s.services.ProfileService, s.services.ViewService, s.logger).RegisterRoutes(v1)
	}
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.services.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": s.config.Environment,
	})
}

// corsMiddleware configures CORS
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.UserIDHeader, middleware.UserRoleHeader, handlers.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", handlers.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(corsConfig)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
			"request_id", handlers.GetRequestID(c),
		)
	}
}
