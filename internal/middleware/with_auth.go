package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/onquest-api/internal/utils"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	RequireUser bool
}

// WithAuth wraps a handler with an authentication guard. Anonymous callers
// pass through only when RequireUser is false.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if opts.RequireUser && !IdentityFromContext(c).Authenticated() {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		return handler(c)
	}
}

// RequireIdentity rejects requests without a signed-in identity.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IdentityFromContext(c).Authenticated() {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		return c.Next()
	}
}
