package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/vigilnet/backend/internal/authcache"
	"github.com/vigilnet/backend/internal/models"
	"github.com/vigilnet/backend/internal/policy"
)

const principalKey = "principal"

// Authenticator resolves a bearer token to a principal
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (authcache.Principal, error)
}

// AuthRequired middleware to protect routes. Token failures are passed to
// the app error handler.
func AuthRequired(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
		}

		p, err := auth.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return err
		}
		c.Locals(principalKey, p)
		return c.Next()
	}
}

// RequireRoles restricts a route group to the given roles
func RequireRoles(roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *fiber.Ctx) error {
		p, ok := GetPrincipal(c)
		if !ok || !allowed[p.Role] {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Permission denied",
			})
		}
		return c.Next()
	}
}

// GetPrincipal returns the authenticated principal from context
func GetPrincipal(c *fiber.Ctx) (authcache.Principal, bool) {
	p, ok := c.Locals(principalKey).(authcache.Principal)
	return p, ok
}

// GetActor returns the policy actor for the current request. It is the
// zero Actor, which every policy check rejects, on public routes.
func GetActor(c *fiber.Ctx) policy.Actor {
	p, ok := GetPrincipal(c)
	if !ok {
		return policy.Actor{}
	}
	return policy.Actor{SubjectID: p.SubjectID, Role: p.Role, ClientID: p.ClientID}
}
