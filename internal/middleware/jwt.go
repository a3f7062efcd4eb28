package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/utils"
)

const (
	localUserID   = "user_id"
	localIdentity = "identity"
)

// JWTProtected returns a middleware that validates JWT bearer tokens issued by
// the identity provider and binds the caller identity to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		identity, err := ParseIdentity(tokenString, secret)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(localUserID, identity.UID)
		c.Locals(localIdentity, identity)

		return c.Next()
	}
}

// ParseIdentity validates an HMAC-signed token and maps its claims onto an Identity.
func ParseIdentity(tokenString, secret string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, fmt.Errorf("invalid token claims")
	}

	identity := models.Identity{
		UID:         stringClaim(claims, "sub", "user_id", "uid"),
		DisplayName: stringClaim(claims, "name", "display_name"),
		Email:       stringClaim(claims, "email"),
		PhotoURL:    stringClaim(claims, "picture", "photo_url"),
	}
	if !identity.Authenticated() {
		return models.Identity{}, fmt.Errorf("token has no subject")
	}
	return identity, nil
}

// IdentityFromContext returns the identity bound by JWTProtected. The zero
// Identity is returned for anonymous requests.
func IdentityFromContext(c *fiber.Ctx) models.Identity {
	if value, ok := c.Locals(localIdentity).(models.Identity); ok {
		return value
	}
	return models.Identity{}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authorization := c.Get("Authorization")
	const bearer = "bearer "
	if len(authorization) > len(bearer) && strings.HasPrefix(strings.ToLower(authorization), bearer) {
		if token := strings.TrimSpace(authorization[len(bearer):]); token != "" {
			return token, true
		}
	}
	// Browsers cannot set headers on websocket upgrades.
	if token := strings.TrimSpace(c.Query("token")); token != "" && strings.HasSuffix(c.Path(), "/ws") {
		return token, true
	}
	return "", false
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		value, ok := claims[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
