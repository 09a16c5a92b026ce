package main

import (
	"context"
	"log"
	"time"

	"advisor-chat/config"
	"advisor-chat/internal/auth"
	"advisor-chat/internal/directory"
	"advisor-chat/internal/domain/conversation"
	dirdomain "advisor-chat/internal/domain/directory"
	"advisor-chat/internal/domain/message"
	"advisor-chat/internal/handler"
	"advisor-chat/internal/notify"
	"advisor-chat/internal/purpose"
	"advisor-chat/internal/redis"
	"advisor-chat/internal/repository"
	"advisor-chat/internal/server"
	"advisor-chat/internal/services"
	"advisor-chat/pkg/database"
	"advisor-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)

	database.Connect(cfg)
	if err := database.DB.AutoMigrate(
		&dirdomain.User{},
		&dirdomain.Assignment{},
		&dirdomain.Lead{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	presence := redis.NewPresenceStore(redisClient, time.Duration(cfg.PresenceTTLMin)*time.Minute)
	limiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())

	// Offline notifications degrade gracefully: without a broker the service
	// still serves requests and live delivery.
	var notifier notify.Notifier
	dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	conn, err := notify.DialWithRetry(dialCtx, notify.ConnectionOptions{
		URL:           cfg.AMQPUrl,
		Exchange:      cfg.AMQPExchange,
		RetryAttempts: 5,
		Delay:         time.Second,
		Logger:        l,
	})
	cancel()
	if err != nil {
		l.Warnf("notification broker unavailable, offline delivery disabled: %v", err)
	} else {
		notifier, err = notify.NewAMQPNotifier(conn, cfg.AMQPExchange, l)
		if err != nil {
			l.Warnf("notification publisher setup failed, offline delivery disabled: %v", err)
			notifier = nil
		}
	}

	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	dir := directory.NewAdapter(database.DB)
	validator := purpose.NewValidator(dir)

	hub := server.NewHub(presence)
	fanout := services.NewFanoutService(hub, notifier, l)

	conversationService := services.NewConversationService(conversationRepo, messageRepo, dir, validator, fanout, l)
	messageService := services.NewMessageService(
		messageRepo,
		conversationRepo,
		fanout,
		l,
		time.Duration(cfg.EditWindowMin)*time.Minute,
		cfg.ModeratorCanModerate,
	)
	hub.BindServices(conversationService, messageService)

	parser := auth.NewTokenParser(cfg.JWTSecret)

	srv := server.New(cfg, l, hub)
	srv.SetupRoutes(&server.Handlers{
		Conversations: handler.NewConversationHandler(conversationService),
		Messages:      handler.NewMessageHandler(messageService),
		WebSocket:     server.NewWebSocketHandler(hub, parser),
	}, parser, limiter)

	go hub.Run()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}

	if notifier != nil {
		notifier.Close()
	}
}
