package middleware

import (
	"log"
	"strings"

	"game-arena-system/models"
	"game-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

// SessionAuth validates the X-Session-Token header against Redis and
// attaches user_id and role to the request context. SSE clients cannot
// set headers, so a token query param is accepted as a fallback.
func SessionAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Get("X-Session-Token"))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing session token",
			})
		}

		sess, err := auth.Session(c.Context(), token)
		if err != nil {
			log.Printf("🚫 [AUTH] rejected token for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired session",
			})
		}

		c.Locals("user_id", sess.UserID)
		c.Locals("role", sess.Role)
		return c.Next()
	}
}

// RequireAdmin gates a route on the admin role. Must run after
// SessionAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != models.RoleAdmin {
			log.Printf("🚫 [AUTH] non-admin %v hit admin route %s", c.Locals("user_id"), c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access required",
			})
		}
		return c.Next()
	}
}
