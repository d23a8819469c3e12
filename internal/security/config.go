// Package security provides centralized security configuration and utilities.
package security

import (
	"time"
)

// SecurityConfig holds all security-related configuration values.
// Fields carry env tags so the config package can parse them with caarlos0/env;
// DefaultSecurityConfig mirrors the envDefault values for tests.
type SecurityConfig struct {
	// Password storage
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// Session management (browser clients)
	SessionTimeout    time.Duration `env:"SESSION_TIMEOUT" envDefault:"8h"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"firmdesk_session"`
	SessionSecure     bool          `env:"SESSION_SECURE" envDefault:"true"`
	SessionHTTPOnly   bool          `env:"SESSION_HTTP_ONLY" envDefault:"true"`
	SessionSameSite   string        `env:"SESSION_SAME_SITE" envDefault:"Strict"`

	// Bearer tokens (API clients)
	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"firmdesk"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`

	// Brute force protection
	AccountLockoutThreshold int           `env:"ACCOUNT_LOCKOUT_THRESHOLD" envDefault:"10"`
	AccountLockoutDuration  time.Duration `env:"ACCOUNT_LOCKOUT_DURATION" envDefault:"30m"`

	// Input validation
	MaxTitleLength       int `env:"MAX_TITLE_LENGTH" envDefault:"200"`
	MaxDescriptionLength int `env:"MAX_DESCRIPTION_LENGTH" envDefault:"4000"`
	MaxRemarksLength     int `env:"MAX_REMARKS_LENGTH" envDefault:"1000"`

	// Listing limits
	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"50"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE" envDefault:"200"`

	// Rate limiting, requests per minute per identifier
	RateLimitLogin        int `env:"RATE_LIMIT_LOGIN" envDefault:"5"`
	RateLimitStatusChange int `env:"RATE_LIMIT_STATUS_CHANGE" envDefault:"60"`
	RateLimitAPI          int `env:"RATE_LIMIT_API" envDefault:"300"`
}

// DefaultSecurityConfig returns security configuration with recommended defaults.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		BcryptCost: 12,

		SessionTimeout:    8 * time.Hour,
		SessionCookieName: "firmdesk_session",
		SessionSecure:     true,
		SessionHTTPOnly:   true,
		SessionSameSite:   "Strict",

		JWTIssuer: "firmdesk",
		JWTTTL:    time.Hour,

		AccountLockoutThreshold: 10,
		AccountLockoutDuration:  30 * time.Minute,

		MaxTitleLength:       200,
		MaxDescriptionLength: 4000,
		MaxRemarksLength:     1000,

		DefaultPageSize: 50,
		MaxPageSize:     200,

		RateLimitLogin:        5,
		RateLimitStatusChange: 60,
		RateLimitAPI:          300,
	}
}
