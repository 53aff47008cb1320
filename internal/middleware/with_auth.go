package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/presence-go-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleAdmin   = "admin"
	AuthRoleActor   = "actor"
	AuthRoleStation = "station"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and role guards. Actor routes
// accept learners and coaches; station routes accept scanning stations and admins.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		if requireUser && !hasUser(c) {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if role == AuthRoleAny {
			return handler(c)
		}

		currentRole := normalizeRoleValue(c.Locals(LocalUserRole))
		if !roleSatisfies(role, currentRole) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		return handler(c)
	}
}

func hasUser(c *fiber.Ctx) bool {
	id, ok := c.Locals(LocalUserID).(uint)
	return ok && id > 0
}

func roleSatisfies(required, current string) bool {
	switch required {
	case AuthRoleAdmin:
		return current == "admin"
	case AuthRoleActor:
		return current == "learner" || current == "coach"
	case AuthRoleStation:
		return current == "station" || current == "admin"
	default:
		return current == required
	}
}
