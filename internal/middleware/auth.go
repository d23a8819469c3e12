// Package middleware provides HTTP middleware functions for authentication and authorization.
// These middleware functions are used to protect routes and enforce role-based access control.
package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Context locals and session keys.
const (
	LocalUserID     = "user_id"
	LocalUserRole   = "user_role"
	LocalAuthMethod = "auth_method"
	LocalRequestID  = "request_id"

	AuthMethodSession = "session"
	AuthMethodBearer  = "bearer"
)

// TokenParser verifies bearer tokens. *services.AuthService implements it.
type TokenParser interface {
	ParseToken(token string) (services.Identity, error)
}

// ErrorJSON writes the API error envelope.
func ErrorJSON(c *fiber.Ctx, status int, code services.Code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// AuthRequired is a middleware that ensures the caller is authenticated.
// API clients send "Authorization: Bearer <jwt>"; browser clients carry the
// session cookie set at login. A present but invalid bearer token is refused
// without falling back to the session.
//
// Context Locals Set:
//   - user_id: The authenticated user's ID (int)
//   - user_role: The role claimed by the credential (models.Role)
//   - auth_method: "bearer" or "session"
//
// Example:
//
//	api := app.Group("/api", middleware.AuthRequired(store, authService, logger))
func AuthRequired(store *session.Store, tokens TokenParser, logger *security.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return ErrorJSON(c, fiber.StatusUnauthorized, services.CodeUnauthenticated, "unsupported authorization scheme")
			}
			id, err := tokens.ParseToken(token)
			if err != nil {
				logger.SecurityEvent(security.EventTokenRejected, nil, "", c.IP(), c.Get(fiber.HeaderUserAgent),
					map[string]interface{}{"path": c.Path()})
				return ErrorJSON(c, fiber.StatusUnauthorized, services.CodeUnauthenticated, err.Error())
			}
			setIdentity(c, id, AuthMethodBearer)
			return c.Next()
		}

		sess, err := store.Get(c)
		if err != nil {
			return ErrorJSON(c, fiber.StatusUnauthorized, services.CodeUnauthenticated, "authentication required")
		}
		userID, ok := sess.Get(LocalUserID).(int)
		if !ok || userID <= 0 {
			return ErrorJSON(c, fiber.StatusUnauthorized, services.CodeUnauthenticated, "authentication required")
		}
		role, _ := sess.Get(LocalUserRole).(string)

		setIdentity(c, services.Identity{UserID: userID, Role: models.Role(role)}, AuthMethodSession)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, id services.Identity, method string) {
	c.Locals(LocalUserID, id.UserID)
	c.Locals(LocalUserRole, id.Role)
	c.Locals(LocalAuthMethod, method)
}

// IdentityFrom returns the identity AuthRequired stored on the request.
func IdentityFrom(c *fiber.Ctx) (services.Identity, bool) {
	userID, ok := c.Locals(LocalUserID).(int)
	if !ok {
		return services.Identity{}, false
	}
	role, _ := c.Locals(LocalUserRole).(models.Role)
	return services.Identity{UserID: userID, Role: role}, true
}

// RequireRoles is a middleware that rejects callers whose stored role is not
// one of roles. The role carried by the credential is ignored, so a promotion
// or demotion takes effect on the next request. This MUST be used after
// AuthRequired.
//
// Context Locals Updated:
//   - user_role: The role read from the database
//
// Security Note:
//
//	The services re-read the role and enforce it again; this gate only turns
//	obviously unauthorized requests away early.
func RequireRoles(users store.UserStore, roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return ErrorJSON(c, fiber.StatusUnauthorized, services.CodeUnauthenticated, "authentication required")
		}

		user, err := users.GetByID(c.UserContext(), id.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrorJSON(c, fiber.StatusUnauthorized, services.CodeUnauthenticated, "authentication required")
		}
		if err != nil {
			return fmt.Errorf("loading user role: %w", err)
		}
		if !user.IsActive() {
			return ErrorJSON(c, fiber.StatusUnauthorized, services.CodeUnauthenticated, "account is inactive")
		}

		c.Locals(LocalUserRole, user.Role)
		if _, ok := allowed[user.Role]; !ok {
			return ErrorJSON(c, fiber.StatusForbidden, services.CodeForbidden, "your role cannot perform this action")
		}
		return c.Next()
	}
}
