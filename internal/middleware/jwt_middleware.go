package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"fooddelivery/internal/services"
)

// AccessTokenCookie is the cookie the login endpoint stores the access token in.
const AccessTokenCookie = "access_token"

// AuthRequired is a Fiber middleware to check for a valid JWT access token.
// The token is read from "Authorization: Bearer <token>" or, failing that, the access_token cookie.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			// Expected format: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if !(len(parts) == 2 && parts[0] == "Bearer") {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Authorization header format must be 'Bearer <token>'",
				})
			}
			tokenString = strings.TrimSpace(parts[1])
		} else {
			tokenString = c.Cookies(AccessTokenCookie)
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication credentials were not provided",
			})
		}

		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// Store claims in Fiber context for subsequent handlers
		c.Locals("user_id", claims["user_id"])
		c.Locals("username", claims["username"])
		c.Locals("is_staff", claims["is_staff"])

		return c.Next()
	}
}

// StaffRequired rejects requests from non-staff users. It must run after AuthRequired.
func StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if staff, _ := c.Locals("is_staff").(bool); !staff {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You do not have permission to perform this action",
			})
		}
		return c.Next()
	}
}
