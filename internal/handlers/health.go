package handlers

import (
	"tappay/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

// Health reports liveness of the store and the cache.
func Health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}
	code := fiber.StatusOK

	if sqlDB, err := repositories.DB.DB(); err != nil || sqlDB.Ping() != nil {
		status["database"] = "down"
		status["status"] = "degraded"
		code = fiber.StatusServiceUnavailable
	} else {
		status["database"] = "up"
	}

	if err := repositories.CacheService.HealthCheck(c.Context()); err != nil {
		status["cache"] = "down"
		status["status"] = "degraded"
		code = fiber.StatusServiceUnavailable
	} else {
		status["cache"] = "up"
	}

	return c.Status(code).JSON(status)
}
