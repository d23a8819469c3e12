// Package middleware provides enhanced security middleware for FirmDesk.
package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

const (
	csrfSessionKey  = "csrf_token"
	csrfHeader      = "X-CSRF-Token"
	requestIDHeader = "X-Request-ID"
)

// SecurityMiddleware provides centralized security functionality.
type SecurityMiddleware struct {
	logger         *security.Logger
	config         *security.SecurityConfig
	loginLimiter   *security.RateLimiter
	accountLockout *security.AccountLockout
}

// NewSecurityMiddleware creates a new security middleware instance.
func NewSecurityMiddleware(logger *security.Logger, config *security.SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger:         logger,
		config:         config,
		loginLimiter:   security.PerMinute(config.RateLimitLogin),
		accountLockout: security.NewAccountLockout(config.AccountLockoutThreshold, config.AccountLockoutDuration),
	}
}

// Stop releases the login limiter's cleanup goroutine.
func (sm *SecurityMiddleware) Stop() {
	sm.loginLimiter.Stop()
}

// CSRFProtection validates the X-CSRF-Token header on state-changing requests
// authenticated by session cookie. Bearer-authenticated requests carry no
// ambient credential and are not checked. This MUST be used after AuthRequired.
func (sm *SecurityMiddleware) CSRFProtection(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		if c.Locals(LocalAuthMethod) == AuthMethodBearer {
			return c.Next()
		}

		sess, err := store.Get(c)
		if err != nil {
			return ErrorJSON(c, fiber.StatusForbidden, services.CodeForbidden, "invalid session")
		}

		sessionToken, _ := sess.Get(csrfSessionKey).(string)
		requestToken := c.Get(csrfHeader)

		reason := ""
		switch {
		case sessionToken == "":
			reason = "missing_session_token"
		case requestToken == "":
			reason = "missing_token"
		case subtle.ConstantTimeCompare([]byte(sessionToken), []byte(requestToken)) != 1:
			reason = "token_mismatch"
		}
		if reason != "" {
			sm.logger.SecurityEvent(security.EventCSRFViolation, actorFrom(c), "", c.IP(), c.Get(fiber.HeaderUserAgent),
				map[string]interface{}{
					"method": c.Method(),
					"path":   c.Path(),
					"reason": reason,
				})
			return ErrorJSON(c, fiber.StatusForbidden, services.CodeForbidden, "CSRF token missing or invalid")
		}

		return c.Next()
	}
}

// IssueCSRFToken stores a fresh CSRF token in sess and returns it. The caller
// saves the session.
func IssueCSRFToken(sess *session.Session) string {
	token := generateCSRFToken()
	sess.Set(csrfSessionKey, token)
	return token
}

// LoginRateLimit implements brute force protection for the login endpoint.
func (sm *SecurityMiddleware) LoginRateLimit(email, ipAddress string) error {
	if !sm.loginLimiter.Allow(ipAddress) {
		sm.logger.SecurityEvent(security.EventRateLimitExceeded, nil, email, ipAddress, "",
			map[string]interface{}{
				"endpoint": "/login",
				"limit":    sm.config.RateLimitLogin,
			})

		return fmt.Errorf("too many login attempts, please try again later")
	}

	// Use email as identifier for account lockout
	if sm.accountLockout.IsLocked(email) {
		remaining := sm.accountLockout.GetLockoutTimeRemaining(email)

		sm.logger.SecurityEvent(security.EventAccountLocked, nil, email, ipAddress, "",
			map[string]interface{}{
				"locked_for": remaining.String(),
			})

		return fmt.Errorf("account is locked due to too many failed attempts, try again in %d minutes", int(remaining.Minutes())+1)
	}

	return nil
}

// RecordLoginFailure records a failed login attempt.
func (sm *SecurityMiddleware) RecordLoginFailure(email, ipAddress string) {
	locked := sm.accountLockout.RecordFailedAttempt(email)

	sm.logger.SecurityEvent(security.EventLoginFailure, nil, email, ipAddress, "",
		map[string]interface{}{
			"locked": locked,
		})
}

// RecordLoginSuccess resets lockout counters on successful login.
func (sm *SecurityMiddleware) RecordLoginSuccess(email, ipAddress string, userID int) {
	sm.accountLockout.ResetAttempts(email)

	sm.logger.SecurityEvent(security.EventLoginSuccess, &userID, email, ipAddress, "",
		map[string]interface{}{
			"success": true,
		})
}

// RateLimit implements per-caller rate limiting for an endpoint group.
// Authenticated callers are limited by user id, anonymous ones by IP.
func (sm *SecurityMiddleware) RateLimit(limiter *security.RateLimiter, endpointName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.IP()
		if userID, ok := c.Locals(LocalUserID).(int); ok {
			identifier = fmt.Sprintf("user_%d", userID)
		}

		if !limiter.Allow(identifier) {
			sm.logger.SecurityEvent(security.EventRateLimitExceeded, actorFrom(c), "", c.IP(), c.Get(fiber.HeaderUserAgent),
				map[string]interface{}{
					"endpoint":   endpointName,
					"identifier": identifier,
				})

			c.Set(fiber.HeaderRetryAfter, "60")
			return ErrorJSON(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded, please try again later")
		}

		return c.Next()
	}
}

// RequestID assigns every request an id, reusing a well-formed incoming X-Request-ID.
func (sm *SecurityMiddleware) RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Locals(LocalRequestID, id)
		c.Set(requestIDHeader, id)
		return c.Next()
	}
}

// RequestLogger logs all HTTP requests with security context.
func (sm *SecurityMiddleware) RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Let the app's error handler write the response before we read the status.
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		var args []any
		if id, ok := c.Locals(LocalRequestID).(string); ok {
			args = append(args, "request_id", id)
		}
		if userID, ok := c.Locals(LocalUserID).(int); ok {
			args = append(args, "actor_id", userID)
		}

		sm.logger.HTTPRequest(
			c.Method(),
			c.Path(),
			c.Response().StatusCode(),
			time.Since(start).Milliseconds(),
			c.IP(),
			c.Get(fiber.HeaderUserAgent),
			args...,
		)
		return err
	}
}

// SecureHeaders adds security headers to responses.
func (sm *SecurityMiddleware) SecureHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// JSON only; nothing may be framed, scripted or embedded
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")

		if sm.config.SessionSecure {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}

func actorFrom(c *fiber.Ctx) *int {
	if userID, ok := c.Locals(LocalUserID).(int); ok {
		return &userID
	}
	return nil
}

// generateCSRFToken generates a cryptographically secure random token.
func generateCSRFToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("generating csrf token: %v", err))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}
