package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-room/internal/auth"
	"chat-room/internal/config"
	"chat-room/internal/db"
	"chat-room/internal/handlers"
	"chat-room/internal/logging"
	"chat-room/internal/middleware"
	"chat-room/internal/observability"
	"chat-room/internal/rabbitmq"
	"chat-room/internal/realtime"
	"chat-room/internal/repositories"
	"chat-room/internal/room"
	"chat-room/internal/store"
	"chat-room/internal/telemetry"
	"chat-room/internal/ws"
)

const (
	serviceName    = "chat-room"
	serviceVersion = "0.1.0"
	auditRouting   = "audit.chat"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, ServiceName: serviceName})
	log := logging.L()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	shutdownTracing, err := telemetry.InitTracing(cfg.OTLPEndpoint, serviceName, serviceVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.ServiceURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	source, err := realtime.NewPQSource(cfg.ServiceURL, db.ChangeChannel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen for changes")
	}
	feed := realtime.NewFeed()
	go feed.Run(ctx, source)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("audit publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, auditRouting, serviceName, cfg.Environment)

	messageRepo := repositories.NewMessageRepo(database)
	messageStore := store.NewClient(messageRepo, feed)
	verifier := auth.NewVerifier(cfg.APIKey)

	hub := ws.NewHub()
	chatHandler := handlers.NewChatHandler(messageRepo, audit)
	roomWS := ws.NewRoomWebSocketHandler(hub, messageStore, verifier, audit, room.Options{
		Cooldown:         cfg.SendCooldown,
		MaxMessageLength: cfg.MaxMessageLength,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(logging.GinMiddleware(log))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/messages", authMiddleware, chatHandler.ListMessages)
	router.DELETE("/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)
	router.GET("/ws", roomWS.Handle)
	handlers.RegisterDebugRoutes(router.Group("", authMiddleware), audit, cfg.Environment == "local")

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("chat room listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
