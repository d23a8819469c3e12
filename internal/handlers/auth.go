// Package handlers implements the JSON HTTP handlers for FirmDesk.
// This file handles authentication: login, logout, and session lifecycle.
package handlers

import (
	"strings"
	"time"

	"github.com/avissapr/firmdesk/internal/middleware"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// AuthHandler handles authentication-related HTTP requests.
// Browser clients get a session cookie plus CSRF token; API clients use the
// bearer token returned alongside.
type AuthHandler struct {
	store          *session.Store
	authService    *services.AuthService
	security       *middleware.SecurityMiddleware
	securityLogger *security.Logger
}

// NewAuthHandler creates a new instance of AuthHandler.
//
// Parameters:
//   - store: Session store for browser sessions
//   - authService: Credential checks and token issuing
//   - sm: Login rate limiting and account lockout
//   - securityLogger: Logger for security events
func NewAuthHandler(
	store *session.Store,
	authService *services.AuthService,
	sm *middleware.SecurityMiddleware,
	securityLogger *security.Logger,
) *AuthHandler {
	return &AuthHandler{
		store:          store,
		authService:    authService,
		security:       sm,
		securityLogger: securityLogger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	CSRFToken string       `json:"csrf_token"`
	User      *models.User `json:"user"`
}

// Login authenticates user credentials and creates a session.
//
// Request Body: {"email": "...", "password": "..."}
//
// Responses:
//   - 200: token, expires_at, csrf_token and the user record
//   - 401: unknown email, wrong password, or inactive account
//   - 429: IP rate limit or account lockout
//
// Side Effects:
//   - Regenerates the session id and stores user_id and user_role
//   - Records failures toward the account lockout, resets it on success
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("body", "request body must be JSON with email and password")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return invalidInput("email", "email and password are required")
	}

	if err := h.security.LoginRateLimit(email, c.IP()); err != nil {
		c.Set(fiber.HeaderRetryAfter, "60")
		return middleware.ErrorJSON(c, fiber.StatusTooManyRequests, "RATE_LIMITED", err.Error())
	}

	user, err := h.authService.Authenticate(c.UserContext(), email, req.Password)
	if err != nil {
		if services.CodeOf(err) == services.CodeUnauthenticated {
			h.security.RecordLoginFailure(email, c.IP())
		}
		return err
	}

	token, expiresAt, err := h.authService.IssueToken(user)
	if err != nil {
		return err
	}

	sess, err := h.store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(middleware.LocalUserID, user.ID)
	sess.Set(middleware.LocalUserRole, string(user.Role))
	csrfToken := middleware.IssueCSRFToken(sess)
	if err := sess.Save(); err != nil {
		return err
	}

	h.security.RecordLoginSuccess(email, c.IP(), user.ID)

	return c.JSON(loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		CSRFToken: csrfToken,
		User:      user,
	})
}

// Logout destroys the browser session. Bearer tokens are stateless and simply
// expire; a bearer logout only records the event.
//
// Responses:
//   - 204: always, once authenticated
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	if c.Locals(middleware.LocalAuthMethod) == middleware.AuthMethodSession {
		sess, err := h.store.Get(c)
		if err != nil {
			return err
		}
		if err := sess.Destroy(); err != nil {
			return err
		}
	}

	h.securityLogger.SecurityEvent(security.EventLogout, &id.UserID, "", c.IP(), c.Get(fiber.HeaderUserAgent),
		map[string]interface{}{
			"auth_method": c.Locals(middleware.LocalAuthMethod),
		})
	return c.SendStatus(fiber.StatusNoContent)
}
