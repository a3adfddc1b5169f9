package api

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// bearerAuth validates "Authorization: Bearer <token>". An empty token
// disables authentication. allowQuery also accepts ?access_token=, which
// browsers need for websocket upgrades.
func bearerAuth(token string, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		presented := ""
		if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
			presented = strings.TrimPrefix(header, "Bearer ")
		} else if allowQuery {
			presented = c.Query("access_token")
		}
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return writeError(c, fiber.StatusUnauthorized, CodeUnauthorized, "unauthorized", nil)
		}
		return c.Next()
	}
}
