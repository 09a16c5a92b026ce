package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advisor-chat/config"
	"advisor-chat/internal/auth"
	"advisor-chat/internal/handler"
	"advisor-chat/internal/middleware"
	"advisor-chat/internal/redis"
	"advisor-chat/internal/transport/httpdto"
	"advisor-chat/pkg/database"
	"advisor-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	hub        *Hub
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	WebSocket     *WebSocketHandler
}

func New(cfg *config.Config, l *logger.Logger, hub *Hub) *Server {
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
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
		hub:    hub,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, parser *auth.TokenParser, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/healthz", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/ws", handlers.WebSocket.Handle)

	authRequired := middleware.AuthMiddleware(parser)

	conversations := s.engine.Group("/api/conversations", authRequired)
	{
		conversations.POST("", handlers.Conversations.Create)
		conversations.GET("", handlers.Conversations.List)
		conversations.GET("/:id", handlers.Conversations.Get)
		conversations.PUT("/:id", handlers.Conversations.Update)
		conversations.POST("/:id/participants", handlers.Conversations.AddParticipants)
		conversations.DELETE("/:id/participants/:userId", handlers.Conversations.RemoveParticipant)
		conversations.POST("/:id/archive", handlers.Conversations.Archive)
		conversations.POST("/:id/unarchive", handlers.Conversations.Unarchive)
		conversations.POST("/:id/typing", handlers.Conversations.Typing)
		conversations.POST("/:id/read", handlers.Conversations.MarkRead)
		conversations.POST("/:id/mute", handlers.Conversations.Mute)
		conversations.POST("/:id/unmute", handlers.Conversations.Unmute)
		conversations.POST("/:id/pin", handlers.Conversations.Pin)
		conversations.POST("/:id/unpin", handlers.Conversations.Unpin)
	}

	messages := s.engine.Group("/api/messages", authRequired)
	{
		messages.POST("", middleware.MessageRateLimitMiddleware(limiter), handlers.Messages.Send)
		messages.GET("", handlers.Messages.List)
		messages.GET("/search", middleware.SearchRateLimitMiddleware(limiter), handlers.Messages.Search)
		messages.GET("/:id", handlers.Messages.Get)
		messages.PUT("/:id", handlers.Messages.Edit)
		messages.DELETE("/:id", handlers.Messages.Delete)
		messages.PATCH("/:id/read", handlers.Messages.MarkRead)
		messages.PATCH("/bulk/read", handlers.Messages.BulkMarkRead)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.hub != nil {
		s.hub.Stop()
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
