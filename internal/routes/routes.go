// Package routes wires the HTTP surface: repositories, services, handlers
// and the route table, grouped by auth requirements.
package routes

import (
	"time"

	"tappay/internal/chain"
	"tappay/internal/config"
	"tappay/internal/handlers"
	"tappay/internal/middleware"
	"tappay/internal/realtime"
	"tappay/internal/repositories"
	"tappay/internal/services/fraud"
	"tappay/internal/services/notifier"
	"tappay/internal/services/pipeline"
	"tappay/internal/services/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
)

// SetupRoutes configures all application routes. The hub and the queue
// client are owned by main; everything else is built here.
func SetupRoutes(app *fiber.App, hub *realtime.Hub, queueClient *asynq.Client) {
	cardRepo := repositories.NewCardRepository(repositories.DB)
	userRepo := repositories.NewUserRepository(repositories.DB)
	merchantRepo := repositories.NewMerchantRepository(repositories.DB)
	transactionRepo := repositories.NewTransactionRepository(repositories.DB)

	chainClient := chain.NewRPCClient(config.DefaultChainConfig())
	fraudPolicy := fraud.NewRateOfUsePolicy(repositories.CacheService, fraud.DefaultConfig())

	ttls := config.DefaultCacheTTLConfig()
	validator := validation.NewService(cardRepo, merchantRepo, repositories.CacheService,
		fraudPolicy, chainClient, validation.Config{
			CardStatusTTL:     ttls.CardStatus,
			FastValidationTTL: ttls.FastValidation,
			RiskThreshold:     validation.DefaultConfig().RiskThreshold,
		})

	pipelineService := pipeline.NewService(queueClient, config.DefaultPipelineConfig())
	feed := notifier.NewFeed(repositories.CacheService, ttls)

	paymentHandler := handlers.NewPaymentHandler(
		validator,
		pipelineService,
		cardRepo,
		userRepo,
		merchantRepo,
		transactionRepo,
		chainClient,
		config.GetDurationEnv("PAYMENT_WAIT_TIMEOUT", 30*time.Second),
	)
	notificationHandler := handlers.NewNotificationHandler(feed)
	authMw := middleware.NewAuthMiddleware()

	app.Get("/health", handlers.Health)

	api := app.Group("/api")

	payment := api.Group("/payment", authMw.Handler)
	payment.Post("/validate", paymentHandler.Validate)
	payment.Post("/process-direct", paymentHandler.ProcessDirect)
	payment.Get("/status/:transactionId", paymentHandler.Status)

	notifications := api.Group("/notifications", authMw.Handler)
	notifications.Get("/", notificationHandler.List)
	notifications.Post("/read", notificationHandler.MarkRead)

	admin := api.Group("/admin", authMw.Handler, authMw.RequireAdmin)
	admin.Get("/alerts", notificationHandler.AdminAlerts)

	app.Use("/ws", realtime.UpgradeMiddleware)
	app.Get("/ws", realtime.Handler(hub))
}
