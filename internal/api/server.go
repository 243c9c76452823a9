// Package api exposes the assessment workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
	"github.com/pashuvlogs/home-app/internal/middleware"
	"github.com/pashuvlogs/home-app/internal/service"
)

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	Workflow  *service.WorkflowService
	Inbox     domain.NotificationInbox
	Reminders *service.ReminderService
	Auth      *middleware.Authenticator
	// HealthCheck reports storage health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	config *domain.Config
	deps   Dependencies
	router *gin.Engine
	server *http.Server
	logger *logrus.Logger
	now    func() time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, deps Dependencies, logger *logrus.Logger) *Server {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"},
		ExposeHeaders:    []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.NewRateLimiter(cfg.RateLimit).Middleware())
	}
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	s := &Server{
		config: cfg,
		deps:   deps,
		router: router,
		logger: logger,
		now:    time.Now,
	}
	s.setupRoutes()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1", s.deps.Auth.Middleware())
	{
		assessments := v1.Group("/assessments")
		assessments.POST("", s.handleCreate)
		assessments.GET("", s.handleList)
		assessments.GET("/:id", s.handleGet)
		assessments.PUT("/:id/parts/:part", s.handleSavePart)
		assessments.POST("/:id/submit", s.handleSubmit)
		assessments.POST("/:id/approve", s.handleApprove)
		assessments.POST("/:id/reject", s.handleReject)
		assessments.POST("/:id/defer", s.handleDefer)
		assessments.POST("/:id/defer/complete", s.handleCompleteDeferral)
		assessments.POST("/:id/resubmit", s.handleResubmit)
		assessments.POST("/:id/amend", s.handleAmend)
		assessments.POST("/:id/override", s.handleOverride)
		assessments.DELETE("/:id/override", s.handleClearOverride)
		assessments.DELETE("/:id", s.handleDelete)
		assessments.GET("/:id/audit", s.handleAudit)

		notifications := v1.Group("/notifications")
		notifications.GET("", s.handleListNotifications)
		notifications.PUT("/read-all", s.handleMarkAllRead)
		notifications.PUT("/:id/read", s.handleMarkRead)

		v1.POST("/reminders/check", s.handleCheckReminders)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(c.Request.Context()); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": s.now().UTC(),
	})
}
