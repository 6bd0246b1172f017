// Package main is the API entry point: HTTP surface plus the realtime edge.
// Settlement jobs run in the worker binary; the two processes share the
// queues, the store and the cache.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tappay/internal/config"
	"tappay/internal/queue"
	"tappay/internal/realtime"
	"tappay/internal/repositories"
	"tappay/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		if sqlDB, err := repositories.DB.DB(); err == nil {
			sqlDB.Close()
		}
		repositories.CacheService.Close()
	}()

	queueClient := queue.NewClient(queue.NewRedisOpt())
	defer queueClient.Close()

	hub := realtime.NewHub()

	// Worker-side emits arrive over the Redis bridge; relay them onto the
	// local connections.
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go realtime.Relay(relayCtx, repositories.CacheService.Client(), hub)

	app := fiber.New(fiber.Config{
		AppName: "tappay",
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// The synchronous tap path is the expensive one; keep per-terminal rates
	// bounded.
	app.Use("/api/payment/process-direct", limiter.New(limiter.Config{
		Max:        config.GetIntEnv("PAYMENT_RATE_LIMIT", 30),
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, hub, queueClient)

	go func() {
		if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
