// Package middleware implements HTTP middleware for FirmDesk.
// This file contains unit tests for authentication and authorization middleware.
//
// Tests verify:
//   - Bearer token and session authentication
//   - Locals set for downstream handlers
//   - Role gates and the JSON error envelope
package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/avissapr/firmdesk/internal/testkit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens map[string]services.Identity

func (s stubTokens) ParseToken(token string) (services.Identity, error) {
	id, ok := s[token]
	if !ok {
		return services.Identity{}, errors.New("invalid or expired token")
	}
	return id, nil
}

func testLogger() *security.Logger {
	return security.NewLoggerWithWriter(io.Discard)
}

// newAuthApp mounts AuthRequired on /protected and a helper that logs in a session.
func newAuthApp(store *session.Store, tokens TokenParser, captured *services.Identity) *fiber.App {
	app := fiber.New()

	app.Get("/login-mock", func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		sess.Set(LocalUserID, 42)
		sess.Set(LocalUserRole, string(models.RoleManager))
		if err := sess.Save(); err != nil {
			return err
		}
		return c.SendString("logged in")
	})

	app.Use("/protected", AuthRequired(store, tokens, testLogger()))
	app.Get("/protected", func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		if captured != nil {
			*captured = id
		}
		return c.SendString(c.Locals(LocalAuthMethod).(string))
	})
	return app
}

func readError(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Error map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope.Error
}

// TestAuthRequired_WithValidSession tests authenticated session access and locals.
func TestAuthRequired_WithValidSession(t *testing.T) {
	store := session.New()
	var captured services.Identity
	app := newAuthApp(store, stubTokens{}, &captured)

	resp1, err := app.Test(httptest.NewRequest("GET", "/login-mock", nil))
	require.NoError(t, err)
	defer resp1.Body.Close()

	req := httptest.NewRequest("GET", "/protected", nil)
	for _, cookie := range resp1.Cookies() {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, AuthMethodSession, string(body))
	assert.Equal(t, services.Identity{UserID: 42, Role: models.RoleManager}, captured)
}

// TestAuthRequired_WithoutCredentials verifies a JSON 401 instead of a redirect.
func TestAuthRequired_WithoutCredentials(t *testing.T) {
	app := newAuthApp(session.New(), stubTokens{}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", readError(t, resp.Body)["code"])
}

func TestAuthRequired_Bearer(t *testing.T) {
	tokens := stubTokens{"good": {UserID: 7, Role: models.RoleStaff}}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer good", wantStatus: fiber.StatusOK},
		{name: "invalid token", header: "Bearer forged", wantStatus: fiber.StatusUnauthorized},
		{name: "other scheme", header: "Basic dXNlcjpwYXNz", wantStatus: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured services.Identity
			app := newAuthApp(session.New(), tokens, &captured)

			req := httptest.NewRequest("GET", "/protected", nil)
			req.Header.Set("Authorization", tt.header)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == fiber.StatusOK {
				assert.Equal(t, services.Identity{UserID: 7, Role: models.RoleStaff}, captured)
			}
		})
	}
}

// TestRequireRoles verifies the gate reads the stored role, not the role
// carried by the credential.
func TestRequireRoles(t *testing.T) {
	st := testkit.NewMemStore()
	owner := st.AddUser(models.User{Name: "Owner", Email: "owner@example.com", Role: models.RoleOwner})
	manager := st.AddUser(models.User{Name: "Manager", Email: "manager@example.com", Role: models.RoleManager, ReportsTo: &owner.ID})
	promoted := st.AddUser(models.User{Name: "Promoted", Email: "promoted@example.com", Role: models.RoleManager, ReportsTo: &owner.ID})
	demoted := st.AddUser(models.User{Name: "Demoted", Email: "demoted@example.com", Role: models.RoleStaff, ReportsTo: &manager.ID})
	inactive := st.AddUser(models.User{Name: "Gone", Email: "gone@example.com", Role: models.RoleManager, ReportsTo: &owner.ID, Status: models.UserStatusInactive})

	tests := []struct {
		name       string
		setLocals  bool
		userID     int
		claimed    models.Role
		wantStatus int
		wantRole   models.Role
	}{
		{name: "owner allowed", setLocals: true, userID: owner.ID, claimed: models.RoleOwner, wantStatus: fiber.StatusOK, wantRole: models.RoleOwner},
		{name: "manager allowed", setLocals: true, userID: manager.ID, claimed: models.RoleManager, wantStatus: fiber.StatusOK, wantRole: models.RoleManager},
		{name: "promoted since login", setLocals: true, userID: promoted.ID, claimed: models.RoleStaff, wantStatus: fiber.StatusOK, wantRole: models.RoleManager},
		{name: "demoted since login", setLocals: true, userID: demoted.ID, claimed: models.RoleManager, wantStatus: fiber.StatusForbidden},
		{name: "inactive user", setLocals: true, userID: inactive.ID, claimed: models.RoleManager, wantStatus: fiber.StatusUnauthorized},
		{name: "unknown user", setLocals: true, userID: 9999, claimed: models.RoleOwner, wantStatus: fiber.StatusUnauthorized},
		{name: "no identity", setLocals: false, wantStatus: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if tt.setLocals {
					c.Locals(LocalUserID, tt.userID)
					c.Locals(LocalUserRole, tt.claimed)
				}
				return c.Next()
			})
			app.Use(RequireRoles(st.Users(), models.RoleOwner, models.RoleManager))
			app.Get("/approvals", func(c *fiber.Ctx) error {
				id, _ := IdentityFrom(c)
				return c.SendString(string(id.Role))
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/approvals", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, string(tt.wantRole), string(body), "Downstream handlers see the stored role")
			}
		})
	}
}
