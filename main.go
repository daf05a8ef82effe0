package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/handlers"
	"messenger-service/internal/media"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/otp"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

func main() {
	config.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, "messenger-service", config.GetEnv("OTLP_ENDPOINT", ""))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	amqpURL := config.GetEnv("AMQP_URL", "")
	exchange := config.GetEnv("AMQP_EXCHANGE", "messenger.events")

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit_logs.messenger", "messenger-service", config.GetEnv("ENVIRONMENT", "development"))

	if eventPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	userRepo := repositories.NewUserRepo(database)
	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	statusRepo := repositories.NewStatusRepo(database)

	var uploader media.Uploader
	uploader, err = media.NewS3Uploader(ctx)
	if err != nil {
		log.Fatalf("failed to init media uploader: %v", err)
	}

	var emails otp.EmailSender = otp.NewSMTPSender()
	if config.GetEnvBool("OTP_LOG_ONLY", false) {
		emails = otp.LogSender{}
	}
	phones := otp.NewTwilioVerifier()

	hub := ws.NewHub()
	typing := ws.NewTypingCoordinator(hub, ws.DefaultTypingTTL)
	broker := ws.NewCallBroker(hub)
	socket := ws.NewSocketHandler(hub, typing, broker, userRepo, messageRepo)

	authHandler := handlers.NewAuthHandler(userRepo, emails, phones, uploader, audit)
	chatHandler := handlers.NewChatHandler(convRepo, messageRepo, userRepo, uploader, hub, audit)
	statusHandler := handlers.NewStatusHandler(statusRepo, userRepo, uploader, hub, audit)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messenger-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, config.GetEnvBool("DEBUG_ROUTES", false))

	router.POST("/api/auth/send-otp", authHandler.SendOTP)
	router.POST("/api/auth/verify-otp", authHandler.VerifyOTP)
	router.GET("/api/auth/logout", authHandler.Logout)

	authMiddleware := middleware.AuthMiddleware()

	router.GET("/api/auth/check-auth", authMiddleware, authHandler.CheckAuth)
	router.PUT("/api/auth/update-profile", authMiddleware, authHandler.UpdateProfile)
	router.GET("/api/users", authMiddleware, authHandler.ListUsers)

	router.POST("/api/messages/send-message", authMiddleware, chatHandler.SendMessage)
	router.GET("/api/messages/conversations", authMiddleware, chatHandler.GetConversations)
	router.GET("/api/messages/conversations/:conversation_id/messages", authMiddleware, chatHandler.GetMessages)
	router.PUT("/api/messages/read", authMiddleware, chatHandler.MarkAsRead)
	router.DELETE("/api/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)

	router.POST("/api/status", authMiddleware, statusHandler.CreateStatus)
	router.GET("/api/status", authMiddleware, statusHandler.ListStatuses)
	router.PUT("/api/status/:status_id/view", authMiddleware, statusHandler.ViewStatus)
	router.DELETE("/api/status/:status_id", authMiddleware, statusHandler.DeleteStatus)

	router.GET("/ws", socket.Handle)

	port := config.GetEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
