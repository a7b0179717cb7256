package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goodies-platform/config"
	"goodies-platform/internal/handler"
	"goodies-platform/internal/middleware"
	"goodies-platform/internal/services"
	"goodies-platform/internal/transport/httpdto"
	"goodies-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Webhook *handler.WebhookHandler
	Admin   *handler.AdminHandler
	Live    *LiveHandler
}

// Dependencies are the services routes consult directly. RateLimiter may
// be nil when redis is disabled.
type Dependencies struct {
	AdminAuth   *services.AdminAuthService
	Settings    middleware.MaintenanceFlag
	RateLimiter middleware.AdminTokenLimiter
	HealthCheck func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))
	s.engine.Use(middleware.Maintenance(deps.Settings))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.POST("/webhooks/:provider", handlers.Webhook.Receive)

	admin := s.engine.Group("/v1/admin")
	{
		token := []gin.HandlerFunc{}
		if deps.RateLimiter != nil {
			token = append(token, middleware.AdminTokenRateLimit(deps.RateLimiter, s.logger))
		}
		admin.POST("/token", append(token, handlers.Admin.Token)...)

		protected := admin.Group("", middleware.AdminAuth(deps.AdminAuth))
		protected.GET("/maintenance", handlers.Admin.GetMaintenance)
		protected.POST("/maintenance", handlers.Admin.SetMaintenance)
		protected.GET("/reconciliation-failures", handlers.Admin.ListFailures)
		protected.POST("/reconciliation-failures/:id/replay", handlers.Admin.ReplayFailure)
		protected.POST("/donations/:id/refund", handlers.Admin.RefundDonation)
	}

	s.engine.GET("/v1/campaigns/:id/live", handlers.Live.Handle)
}

// Start serves until SIGINT or SIGTERM, then shuts down within 5 seconds.
// onShutdown runs after the listener has closed.
func (s *Server) Start(onShutdown func(ctx context.Context)) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		s.logger.Errorf("Error in starting the server: %s", err)
		return err
	case <-quit:
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}
	if onShutdown != nil {
		onShutdown(ctx)
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
