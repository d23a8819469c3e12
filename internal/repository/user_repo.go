// Package repository implements database access layer for FirmDesk.
// This file handles user accounts and the reporting hierarchy between them.
package repository

import (
	"context"
	"fmt"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, name, role, status, reports_to, password_hash, created_at`

// UserRepository handles user-related database operations.
// Manages user accounts, authentication lookups, and reports_to links.
type UserRepository struct {
	q database.Querier
}

// NewUserRepository creates a new instance of UserRepository on the global pool.
//
// Returns:
//   - *UserRepository: Initialized repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Role, &user.Status,
		&user.ReportsTo, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// GetByEmail retrieves a user by their email address.
// Used for authentication during login process to validate credentials.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - email: User's email address (unique identifier)
//
// Returns:
//   - *models.User: User object with full details including password hash
//   - error: store.ErrNotFound if email doesn't exist, database error otherwise
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(conn(r.q).QueryRow(ctx, query, email))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// GetByID retrieves a user by their unique ID.
// Used for identity checks and every step of the hierarchy walk.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(conn(r.q).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// ListByIDs retrieves the users with the given ids, ordered by name.
func (r *UserRepository) ListByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY name`

	rows, err := conn(r.q).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// ListReportsOf retrieves every user whose reports_to is one of managerIDs.
// The hierarchy resolver calls this once per level of the reporting tree.
func (r *UserRepository) ListReportsOf(ctx context.Context, managerIDs []int) ([]models.User, error) {
	if len(managerIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE reports_to = ANY($1) ORDER BY id`

	rows, err := conn(r.q).Query(ctx, query, managerIDs)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// SetReportsTo moves a user under a new supervisor, or detaches them when managerID is nil.
func (r *UserRepository) SetReportsTo(ctx context.Context, userID int, managerID *int) error {
	tag, err := conn(r.q).Exec(ctx, `UPDATE users SET reports_to = $1 WHERE id = $2`, managerID, userID)
	if err != nil {
		return fmt.Errorf("updating reports_to: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Create inserts a new user into the database.
// Password must be pre-hashed using bcrypt before calling this method.
//
// Side Effects: Populates user.ID and user.CreatedAt with database-generated values
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, role, status, reports_to, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	return conn(r.q).QueryRow(ctx, query,
		user.Email, user.Name, user.Role, user.Status, user.ReportsTo, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
}
