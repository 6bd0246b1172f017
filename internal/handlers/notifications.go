package handlers

import (
	"tappay/internal/models"
	"tappay/internal/services/notifier"
	"tappay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler exposes the cache-backed notification feeds.
type NotificationHandler struct {
	feed *notifier.Feed
}

// NewNotificationHandler creates the notification handler.
func NewNotificationHandler(feed *notifier.Feed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// List returns the caller's feed, newest first.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok {
		return response.Unauthorized(c)
	}

	limit := c.QueryInt("limit", 0)
	notifications, err := h.feed.List(c.Context(), claims.UserID, limit)
	if err != nil {
		return response.ServerError(c, "failed to load notifications")
	}
	return response.Success(c, "notifications", notifications)
}

// MarkRead flags feed entries as read. An empty id list marks everything.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	if err := h.feed.MarkRead(c.Context(), claims.UserID, input.IDs); err != nil {
		return response.ServerError(c, "failed to update notifications")
	}
	return response.Success(c, "notifications updated", nil)
}

// AdminAlerts returns the manual-review backlog. Admin only.
func (h *NotificationHandler) AdminAlerts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	alerts, err := h.feed.ListAdminAlerts(c.Context(), limit)
	if err != nil {
		return response.ServerError(c, "failed to load alerts")
	}
	return response.Success(c, "alerts", alerts)
}
