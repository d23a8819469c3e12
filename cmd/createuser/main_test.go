package main

import (
	"strings"
	"testing"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	v := security.NewValidationService(security.DefaultSecurityConfig())

	tests := []struct {
		name      string
		email     string
		role      models.Role
		reportsTo int
		wantErr   string
	}{
		{name: "owner", email: " Owner@Example.com", role: models.RoleOwner},
		{name: "staff under manager", email: "staff@example.com", role: models.RoleStaff, reportsTo: 2},
		{name: "owner with supervisor", email: "o@example.com", role: models.RoleOwner, reportsTo: 2, wantErr: "cannot report"},
		{name: "staff without supervisor", email: "s@example.com", role: models.RoleStaff, wantErr: "-reports-to"},
		{name: "bad email", email: "not-an-email", role: models.RoleStaff, reportsTo: 2, wantErr: "email"},
		{name: "bad role", email: "x@example.com", role: "admin", reportsTo: 2, wantErr: "invalid role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := newUser(v, tt.email, "Asha Rao", tt.role, tt.reportsTo)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(strings.TrimSpace(tt.email)), user.Email)
			assert.Equal(t, models.UserStatusActive, user.Status)
			if tt.reportsTo == 0 {
				assert.Nil(t, user.ReportsTo)
			} else {
				require.NotNil(t, user.ReportsTo)
				assert.Equal(t, tt.reportsTo, *user.ReportsTo)
			}
		})
	}
}

func TestReadPassword(t *testing.T) {
	t.Setenv("FIRMDESK_PASSWORD", "")

	password, err := readPassword(strings.NewReader("S3cretPass\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "S3cretPass", password)

	_, err = readPassword(strings.NewReader(""))
	assert.Error(t, err)

	t.Setenv("FIRMDESK_PASSWORD", "FromEnv123")
	password, err = readPassword(strings.NewReader("S3cretPass\n"))
	require.NoError(t, err)
	assert.Equal(t, "FromEnv123", password)
}
