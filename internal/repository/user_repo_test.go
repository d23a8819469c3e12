// Package repository_test provides unit tests for the repository layer.
// Tests use pgxmock v4 for database mocking and follow table-driven testing patterns.
// User repository tests verify lookups and the reports_to hierarchy operations.
package repository_test

import (
	"context"
	"testing"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/repository"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "name", "role", "status", "reports_to", "password_hash", "created_at"}

// TestUserRepository_GetByEmail verifies user lookup by email address.
// Critical for authentication flow - finds user record for login validation.
//
// Test Cases:
//   - Successful user lookup: Returns user with matching email
//   - User not found: Returns store.ErrNotFound
func TestUserRepository_GetByEmail(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		mockSetup     func(pgxmock.PgxPoolIface)
		expectedUser  *models.User
		expectedError error
	}{
		{
			name:  "successful user lookup",
			email: "test@example.com",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userCols).
					AddRow(1, "test@example.com", "Test User", models.RoleStaff, models.UserStatusActive,
						intPtr(7), "hashed_password", testTime)

				mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
					WithArgs("test@example.com").
					WillReturnRows(rows)
			},
			expectedUser: &models.User{
				ID:           1,
				Email:        "test@example.com",
				Name:         "Test User",
				Role:         models.RoleStaff,
				Status:       models.UserStatusActive,
				ReportsTo:    intPtr(7),
				PasswordHash: "hashed_password",
				CreatedAt:    testTime,
			},
		},
		{
			name:  "user not found",
			email: "nonexistent@example.com",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
					WithArgs("nonexistent@example.com").
					WillReturnError(pgx.ErrNoRows)
			},
			expectedError: store.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			mock := newMockDB(t)
			tt.mockSetup(mock)
			repo := repository.NewUserRepository()

			// Act
			user, err := repo.GetByEmail(context.Background(), tt.email)

			// Assert
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user, "User should be nil on error")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedUser, user)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestUserRepository_GetByID verifies user lookup by ID, used at every step of the hierarchy walk.
func TestUserRepository_GetByID(t *testing.T) {
	mock := newMockDB(t)

	rows := pgxmock.NewRows(userCols).
		AddRow(3, "owner@example.com", "Owner", models.RoleOwner, models.UserStatusActive,
			(*int)(nil), "hash", testTime)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(3).
		WillReturnRows(rows)

	user, err := repository.NewUserRepository().GetByID(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, user.Role)
	assert.Nil(t, user.ReportsTo, "Owner has no supervisor")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepository_ListReportsOf verifies one level of the reporting tree is fetched in one query.
func TestUserRepository_ListReportsOf(t *testing.T) {
	mock := newMockDB(t)

	rows := pgxmock.NewRows(userCols).
		AddRow(4, "m@example.com", "Manager", models.RoleManager, models.UserStatusActive, intPtr(1), "h", testTime).
		AddRow(5, "s@example.com", "Staff", models.RoleStaff, models.UserStatusActive, intPtr(1), "h", testTime)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE reports_to = ANY").
		WithArgs([]int{1}).
		WillReturnRows(rows)

	users, err := repository.NewUserRepository().ListReportsOf(context.Background(), []int{1})

	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 4, users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepository_ListReportsOf_Empty verifies no query is issued for an empty frontier.
func TestUserRepository_ListReportsOf_Empty(t *testing.T) {
	mock := newMockDB(t)

	users, err := repository.NewUserRepository().ListReportsOf(context.Background(), nil)

	assert.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepository_SetReportsTo verifies supervisor updates and the missing-user case.
func TestUserRepository_SetReportsTo(t *testing.T) {
	tests := []struct {
		name          string
		rowsAffected  int64
		expectedError error
	}{
		{name: "user moved", rowsAffected: 1},
		{name: "unknown user", rowsAffected: 0, expectedError: store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockDB(t)
			mock.ExpectExec("UPDATE users SET reports_to").
				WithArgs(intPtr(2), 9).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.rowsAffected))

			err := repository.NewUserRepository().SetReportsTo(context.Background(), 9, intPtr(2))

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestUserRepository_Create verifies user creation populates the generated fields.
//
// Security Notes:
//   - Password must be hashed before calling this method
//   - Email uniqueness enforced by database constraint
func TestUserRepository_Create(t *testing.T) {
	mock := newMockDB(t)

	user := &models.User{
		Email:        "new@example.com",
		Name:         "New User",
		Role:         models.RoleStaff,
		Status:       models.UserStatusActive,
		ReportsTo:    intPtr(1),
		PasswordHash: "hashed",
	}

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("new@example.com", "New User", models.RoleStaff, models.UserStatusActive, intPtr(1), "hashed").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(11, testTime))

	err := repository.NewUserRepository().Create(context.Background(), user)

	assert.NoError(t, err, "Creation should succeed")
	assert.Equal(t, 11, user.ID, "User ID should be set after creation")
	assert.Equal(t, testTime, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
