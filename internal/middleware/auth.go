package middleware

import (
	"strings"

	"tappay/internal/models"
	"tappay/internal/utils"
	"tappay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware validates bearer tokens and stashes the claims in locals.
type AuthMiddleware struct{}

// NewAuthMiddleware creates the auth middleware.
func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{}
}

// Handler rejects requests without a valid bearer token.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return response.Unauthorized(c)
	}

	claims, err := utils.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return response.Unauthorized(c)
	}

	c.Locals("claims", claims)
	return c.Next()
}

// RequireAdmin gates a route to admin users. Must run after Handler.
func (m *AuthMiddleware) RequireAdmin(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims.Role != "admin" {
		return response.Error(c, fiber.StatusForbidden, "admin access required")
	}
	return c.Next()
}
