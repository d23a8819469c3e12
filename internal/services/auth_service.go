// Package services provides business logic layer for FirmDesk.
// This file implements authentication: credential checks with bcrypt, password
// hashing, and the bearer tokens issued to API clients.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password alike.
var ErrInvalidCredentials = &Error{Code: CodeUnauthenticated, Message: "invalid email or password"}

// ErrInvalidToken is returned for any bearer token that fails verification.
var ErrInvalidToken = &Error{Code: CodeUnauthenticated, Message: "invalid or expired token"}

// TokenClaims are the JWT claims issued at login. Role is informational; the
// stored role is authoritative on every request.
type TokenClaims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles authentication and password management operations.
//
// Security Notes:
//   - Constant-time password comparison prevents timing attacks
//   - Never stores or logs plaintext passwords
//   - Tokens are HS256 only; other algorithms are refused at parse time
type AuthService struct {
	users  store.UserStore
	config *security.SecurityConfig
	now    func() time.Time
}

// NewAuthService creates an AuthService over the given user store.
//
// Example:
//
//	authService := services.NewAuthService(repository.Default().Users(), cfg)
//	user, err := authService.Authenticate(ctx, email, password)
func NewAuthService(users store.UserStore, config *security.SecurityConfig) *AuthService {
	return &AuthService{
		users:  users,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate verifies user credentials and returns the user record on success.
//
// Returns:
//   - *models.User: User record if authentication successful
//   - error: ErrInvalidCredentials, Unauthenticated for inactive accounts,
//     or a store error
//
// Security Notes:
//   - Returns the same error for "user not found" and "invalid password"
//     to avoid revealing which users exist
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, unauthenticated("account is inactive")
	}
	return user, nil
}

// HashPassword generates a bcrypt hash of the provided plaintext password
// using the configured cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	return string(hash), err
}

// IssueToken signs a bearer token for user.
//
// Returns:
//   - string: The signed JWT
//   - time.Time: Expiry of the token
//   - error: If no JWT secret is configured or signing fails
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	if s.config.JWTSecret == "" {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}

	now := s.now()
	expires := now.Add(s.config.JWTTTL)
	claims := TokenClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.JWTIssuer,
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken verifies a bearer token and returns the identity it carries.
func (s *AuthService) ParseToken(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" || s.config.JWTSecret == "" {
		return Identity{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(s.config.JWTIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Role: claims.Role}, nil
}
