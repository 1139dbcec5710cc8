package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/auth"
)

const userIDKey = "user_id"

// JWTAuth rejects requests without a valid bearer token and stores the
// token's owner id for downstream handlers.
func JWTAuth(signer *auth.Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		ownerID, err := signer.Verify(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(userIDKey, ownerID)
		return c.Next()
	}
}

// UserID returns the authenticated owner set by JWTAuth.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(userIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}
