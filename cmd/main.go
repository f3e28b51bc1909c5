package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-match-live/internal/config"
	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/gatekeeper"
	"github.com/weiawesome/wes-match-live/internal/handler"
	"github.com/weiawesome/wes-match-live/internal/hub"
	"github.com/weiawesome/wes-match-live/internal/kafka"
	"github.com/weiawesome/wes-match-live/internal/service"
	"github.com/weiawesome/wes-match-live/internal/store"
	"github.com/weiawesome/wes-match-live/pkg/clock"
	"github.com/weiawesome/wes-match-live/pkg/jwt"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
	"github.com/weiawesome/wes-match-live/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting match-live")

	jwtManager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenDuration)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	conversations, err := conversation.New(cfg.Conversation)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Conversation.Driver).Msg("failed to open conversation store")
	}
	defer conversations.Close()

	// Last-seen persistence and cross-instance presence updates
	var presenceStore store.PresenceStore
	if cfg.Redis.Enabled {
		rs, err := store.NewRedisStore(store.RedisConfig{
			Address:       cfg.Redis.Address,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			LastSeenKey:   cfg.Redis.LastSeenKey,
			PubSubChannel: cfg.Redis.PubSubChannel,
			InstanceID:    cfg.Server.InstanceID,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create redis store")
		}
		defer rs.Close()
		presenceStore = rs
	}

	clk := clock.Real()

	// Create hub
	h := hub.NewHub(hub.Config{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		Clock:          clk,
	})

	// Create service
	svc := service.NewRealtimeService(h, conversations, presenceStore, clk, service.Config{
		BroadcastDebounce:    cfg.Presence.BroadcastDebounce,
		OfflineQueueCapacity: cfg.Presence.OfflineQueueCapacity,
		HistoryReplayLimit:   cfg.Presence.HistoryReplayLimit,
		MaxContentLength:     cfg.Delivery.MaxContentLength,
	})

	ctx, cancel := context.WithCancel(context.Background())

	if err := svc.Start(ctx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("failed to start realtime service")
	}

	// Start Kafka consumer for relationship notifications
	var kafkaConsumer *kafka.ConfluentConsumer
	if cfg.Kafka.Enabled {
		if kc, err := kafka.NewConfluentConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.Topic,
			cfg.Kafka.GroupID,
			svc, // service implements NotificationHandler
		); err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, notifications only via REST")
		} else {
			if err := kc.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to start kafka consumer")
			} else {
				kafkaConsumer = kc
				logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka consumer started")
			}
		}
	}

	// Create handlers
	wsHandler := handler.NewWSHandler(h, svc, gatekeeper.New(jwtManager))
	httpHandler := handler.NewHTTPHandler(svc, middleware.NewAuthMiddleware(jwtManager))

	// Setup routes
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Msg("match-live listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down match-live")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel() // 1. stop Kafka consumer

		if kafkaConsumer != nil {
			kafkaConsumer.Close() // 2. wait for in-flight notification
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil { // 3. stop accepting connections
			logger.Error().Err(err).Msg("server shutdown error")
		}

		h.Stop() // 4. close all WS clients

		if err := svc.Stop(); err != nil { // 5. flush last seen
			logger.Error().Err(err).Msg("failed to persist presence on shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("match-live stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
