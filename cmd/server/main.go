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

	"github.com/chatmesh/server/internal/archive"
	"github.com/chatmesh/server/internal/auth"
	"github.com/chatmesh/server/internal/cache"
	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/internal/handler"
	"github.com/chatmesh/server/internal/hub"
	"github.com/chatmesh/server/internal/notify"
	"github.com/chatmesh/server/internal/presence"
	"github.com/chatmesh/server/internal/pubsub"
	"github.com/chatmesh/server/internal/repository"
	"github.com/chatmesh/server/internal/service"
	"github.com/chatmesh/server/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().Int("port", cfg.Server.Port).Msg("starting realtime server")

	mongo, err := repository.NewMongo(cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer mongo.Close()
	logger.Info().Str("uri", cfg.Mongo.URI).Msg("connected to mongo")

	broker, err := pubsub.NewRedisBroker(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis broker")
	}
	defer broker.Close()
	logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	userCache, err := cache.NewRedisUserCache(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize profile cache")
	}
	defer userCache.Close()

	var archiver archive.Producer = archive.NopProducer{}
	if cfg.Kafka.Enabled {
		p, err := archive.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		defer p.Close()
		archiver = p
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	}

	var gateway notify.Gateway = notify.NopGateway{}
	if cfg.Push.Enabled {
		g, err := notify.NewWebPushGateway(cfg.Push)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize push gateway")
		}
		gateway = g
		logger.Info().Msg("web push gateway enabled")
	}

	users := repository.NewMongoUserRepository(mongo)
	conversations := repository.NewMongoConversationRepository(mongo)
	messages := repository.NewMongoMessageRepository(mongo)

	wsHub := hub.NewHub()
	go wsHub.Run()

	bridge := pubsub.NewBridge(broker, wsHub)
	registry := presence.NewRegistry(broker, bridge, users, conversations, userCache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)
	registry.Start(ctx)

	verifier := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	chatSvc := service.NewChatService(verifier, users, conversations, messages, userCache, wsHub, bridge, registry, gateway, archiver)

	wsHandler := handler.NewWSHandler(wsHub, chatSvc, cfg.WebSocket)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	wsHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("stopped")
}
