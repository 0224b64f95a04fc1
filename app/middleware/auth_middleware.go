package middleware

import (
	"errors"
	"strings"

	"geodoc/backend"

	"github.com/gofiber/fiber/v2"
)

// PlugAuth guards the given prefix: requests only pass once a backend token
// is installed and not expired. Auth and health endpoints stay open.
func PlugAuth(guardedPrefix string, client *backend.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		if strings.HasPrefix(path, guardedPrefix) {
			if err := client.Authenticated(); err != nil {
				message := "login required"
				if errors.Is(err, backend.ErrTokenExpired) {
					message = "session expired, please log in again"
				}
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"status": fiber.StatusUnauthorized,
					"error":  message,
				})
			}
		}

		return c.Next()
	}
}
